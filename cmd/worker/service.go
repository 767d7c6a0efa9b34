package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

const defaultHeartbeat = 30 * time.Second

type consumerRunner interface {
	Run(ctx context.Context) error
}

type dependency struct {
	name string
	ping func(context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []dependency
	Consumers    map[string]consumerRunner
	Heartbeat    time.Duration
}

// Service runs every notification consumer in its own goroutine. The first
// consumer to fail cancels the rest.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers map[string]consumerRunner
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	var err error
	if params.Logger == nil {
		err = multierr.Append(err, errors.New("logger is required"))
	}
	if len(params.Consumers) == 0 {
		err = multierr.Append(err, errors.New("at least one consumer is required"))
	}
	for name, c := range params.Consumers {
		if c == nil {
			err = multierr.Append(err, fmt.Errorf("consumer %s is nil", name))
		}
	}
	for _, dep := range params.Dependencies {
		if dep.ping == nil {
			err = multierr.Append(err, fmt.Errorf("dependency %s has no ping", dep.name))
		}
	}
	if err != nil {
		return nil, err
	}

	heartbeat := params.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumers: params.Consumers,
		heartbeat: heartbeat,
	}, nil
}

// ready pings every dependency and reports all that are down at once.
func (s *Service) ready(ctx context.Context) error {
	var err error
	for _, dep := range s.deps {
		if pingErr := dep.ping(ctx); pingErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", dep.name, pingErr))
		}
	}
	return err
}

// Run blocks until ctx is cancelled or a consumer stops. A consumer that
// returns without error while the context is still live counts as a failure
// since subscriptions are meant to run forever.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		s.logg.Error(ctx, "worker dependencies not ready", err)
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")

	group, gctx := errgroup.WithContext(ctx)
	for _, name := range s.consumerNames() {
		consumer := s.consumers[name]
		group.Go(func() error {
			err := consumer.Run(gctx)
			switch {
			case gctx.Err() != nil:
				return nil
			case err == nil:
				return fmt.Errorf("%s: stopped receiving", name)
			default:
				return fmt.Errorf("%s: %w", name, err)
			}
		})
	}
	group.Go(func() error {
		s.beat(gctx)
		return nil
	})

	err := group.Wait()
	if err != nil {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	return ctx.Err()
}

func (s *Service) beat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logg.Debug(ctx, "worker heartbeat")
		}
	}
}

func (s *Service) consumerNames() []string {
	names := make([]string, 0, len(s.consumers))
	for name := range s.consumers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
