package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/registry"
	pkgpubsub "github.com/gebeya-market/gebeya-backend/pkg/pubsub"
)

func TestProcessBatchPublishesRowsInOrder(t *testing.T) {
	first, second := checkoutRow(t), checkoutRow(t)
	h := newHarness(t, defaultOutboxConfig(), first, second)

	more, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, h.rows.published)

	require.Len(t, h.publisher.sent, 2)
	attrs := h.publisher.sent[0].Attributes
	assert.Equal(t, first.ID.String(), attrs[pkgpubsub.AttrEventID])
	assert.Equal(t, string(enums.EventOrderCreated), attrs[pkgpubsub.AttrEventType])
	assert.Equal(t, string(enums.AggregateCheckoutGroup), attrs[pkgpubsub.AttrAggregateType])
	assert.Equal(t, first.AggregateID.String(), attrs[pkgpubsub.AttrAggregateID])
	assert.Equal(t, "1", attrs[pkgpubsub.AttrVersion])
	assert.Equal(t, []byte(first.Payload), h.publisher.sent[0].Data)
}

func TestProcessBatchHoldsLaterRowsBehindTransientFailure(t *testing.T) {
	first, second := checkoutRow(t), checkoutRow(t)
	h := newHarness(t, defaultOutboxConfig(), first, second)
	h.publisher.failures = []error{errors.New("deadline exceeded")}

	more, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, first.ID, h.rows.failed[0])
	assert.Empty(t, h.rows.published)
	assert.Len(t, h.publisher.sent, 1)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchReportsIdleWhenEmpty(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig())

	more, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, more)
}

func TestUnresolvableRowIsParked(t *testing.T) {
	row := checkoutRow(t)
	h := newHarness(t, defaultOutboxConfig(), row)
	h.resolver.err = registry.NewNonRetryableError(enums.DLQReasonNoTopic, errors.New("no descriptor"))

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, enums.DLQReasonNoTopic, entry.ErrorReason)
	assert.Equal(t, []byte(row.Payload), []byte(entry.Payload))
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "no descriptor")
	assert.Equal(t, []uuid.UUID{row.ID}, h.rows.deleted)
	assert.Empty(t, h.publisher.sent)
}

func TestPlainResolveErrorParksAsDecode(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig(), checkoutRow(t))
	h.resolver.err = errors.New("unexpected end of JSON input")

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.DLQReasonDecode, h.dlq.entries[0].ErrorReason)
}

func TestExhaustedRowIsParkedWithAttemptCount(t *testing.T) {
	row := checkoutRow(t)
	row.AttemptCount = 1
	cfg := defaultOutboxConfig()
	cfg.MaxAttempts = 2
	h := newHarness(t, cfg, row)
	h.publisher.failures = []error{errors.New("unavailable")}
	reg := prometheus.NewRegistry()
	h.svc.metrics = metrics.NewOutboxMetrics(reg)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, enums.DLQReasonMaxAttempts, entry.ErrorReason)
	assert.Equal(t, 2, entry.AttemptCount)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "gave up after 2 attempts")

	expected := `
# HELP gebeya_outbox_dlq_total Events moved to the dead letter table by reason.
# TYPE gebeya_outbox_dlq_total counter
gebeya_outbox_dlq_total{reason="max_attempts"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gebeya_outbox_dlq_total"))
}

func TestMissingPublisherParksAsNoTopic(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig(), checkoutRow(t))
	h.svc.publisherFactory = func(string) publisher { return nil }

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.DLQReasonNoTopic, h.dlq.entries[0].ErrorReason)
	assert.Empty(t, h.rows.failed)
}
