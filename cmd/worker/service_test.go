package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceReportsEveryProblem(t *testing.T) {
	_, err := NewService(ServiceParams{
		Dependencies: []dependency{{name: "redis"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
	assert.Contains(t, err.Error(), "at least one consumer is required")
	assert.Contains(t, err.Error(), "dependency redis has no ping")
}

func TestRunStopsOnFirstConsumerFailure(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Consumers: map[string]consumerRunner{
			"order-notifications":  runnerFunc(func(context.Context) error { return boom }),
			"payout-notifications": runnerFunc(blockUntilDone),
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "order-notifications")
}

func TestRunTreatsSilentExitAsFailure(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Consumers: map[string]consumerRunner{
			"order-notifications": runnerFunc(func(context.Context) error { return nil }),
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped receiving")
}

func TestRunReturnsCancellationOnShutdown(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:    quietLogger(),
		Consumers: map[string]consumerRunner{"order-notifications": runnerFunc(blockUntilDone)},
		Heartbeat: time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.DeadlineExceeded)
}

func TestRunRefusesWhenDependencyDown(t *testing.T) {
	ran := false
	svc, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Dependencies: []dependency{
			{name: "database", ping: func(context.Context) error { return errors.New("refused") }},
			{name: "redis", ping: func(context.Context) error { return errors.New("timeout") }},
		},
		Consumers: map[string]consumerRunner{"c": runnerFunc(func(ctx context.Context) error {
			ran = true
			return blockUntilDone(ctx)
		})},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database: refused")
	assert.Contains(t, err.Error(), "redis: timeout")
	assert.False(t, ran)
}
