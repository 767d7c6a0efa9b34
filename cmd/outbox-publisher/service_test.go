package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
)

func TestPollBackoffDoublesUpToCap(t *testing.T) {
	b := pollBackoff(time.Second)
	first, stop := b.Next()
	require.False(t, stop)
	assert.Equal(t, time.Second, first)

	var last time.Duration
	for i := 0; i < 10; i++ {
		last, _ = b.Next()
		require.LessOrEqual(t, last, maxBackoff)
	}
	assert.Equal(t, maxBackoff, last)
}

func TestNewServiceListsEveryMissingDependency(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	require.Error(t, err)
	for _, want := range []string{"logger", "database client", "pubsub client", "outbox repository", "event registry", "dlq repository"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{})

	assert.Equal(t, defaultBatchSize, h.svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, h.svc.maxAttempts)
	assert.Positive(t, h.svc.pollInterval)
}
