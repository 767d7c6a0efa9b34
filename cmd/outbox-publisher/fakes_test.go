package main

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/registry"
)

// harness wires a Service to in-memory collaborators.
type harness struct {
	rows      *memOutbox
	dlq       *memDLQ
	publisher *scriptedPublisher
	resolver  *stubResolver
	svc       *Service
}

func newHarness(t *testing.T, outboxCfg config.OutboxConfig, rows ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		rows:      &memOutbox{rows: rows, attempts: map[uuid.UUID]int{}},
		dlq:       &memDLQ{},
		publisher: &scriptedPublisher{},
		resolver:  &stubResolver{topic: "orders-topic"},
	}
	for _, row := range rows {
		h.rows.attempts[row.ID] = row.AttemptCount
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               inlineTx{},
		PubSub:           okPubSub{},
		Repository:       h.rows,
		Registry:         h.resolver,
		PublisherFactory: func(string) publisher { return h.publisher },
		DLQRepository:    h.dlq,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func defaultOutboxConfig() config.OutboxConfig {
	return config.OutboxConfig{BatchSize: 10, PollIntervalMS: 100, MaxAttempts: 5}
}

func checkoutRow(t *testing.T) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    id.String(),
		EventType:  string(enums.EventOrderCreated),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateCheckoutGroup,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

type memOutbox struct {
	rows      []models.OutboxEvent
	attempts  map[uuid.UUID]int
	published []uuid.UUID
	failed    []uuid.UUID
	deleted   []uuid.UUID
}

func (m *memOutbox) FetchUnpublished(context.Context, int) ([]models.OutboxEvent, error) {
	return m.rows, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ error) (int, error) {
	m.failed = append(m.failed, id)
	m.attempts[id]++
	return m.attempts[id], nil
}

func (m *memOutbox) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

type inlineTx struct{}

func (inlineTx) Ping(context.Context) error { return nil }

func (inlineTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type okPubSub struct{}

func (okPubSub) Ping(context.Context) error { return nil }

func (okPubSub) Publisher(string) *gcppubsub.Publisher { return nil }

// scriptedPublisher fails the calls listed in failures, in order, and
// succeeds once the script runs out.
type scriptedPublisher struct {
	failures []error
	sent     []*gcppubsub.Message
}

func (p *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	var err error
	if len(p.failures) > 0 {
		err, p.failures = p.failures[0], p.failures[1:]
	}
	return settled{err: err}
}

type settled struct{ err error }

func (s settled) Get(context.Context) (string, error) { return "server-id", s.err }

type stubResolver struct {
	topic string
	err   error
}

func (r *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         r.topic,
		},
		Envelope: env,
		Payload:  &payloads.OrderCreatedEvent{},
	}, nil
}
