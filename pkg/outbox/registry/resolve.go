package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
)

// EventDescriptor is the routing half of a catalog entry with its topic
// filled in from config.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation and decoded cleanly.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	descriptors map[enums.OutboxEventType]EventDescriptor
	decoders    *DecoderRegistry
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[stream]string{ordersStream: cfg.OrdersTopic, payoutsStream: cfg.PayoutsTopic}
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.PayoutsTopic == "":
		return nil, errors.New("payouts topic is required")
	}

	reg := &EventRegistry{
		descriptors: make(map[enums.OutboxEventType]EventDescriptor, len(catalog)),
		decoders:    NewConsumerDecoders(),
	}
	for _, e := range catalog {
		reg.descriptors[e.eventType] = EventDescriptor{
			EventType:     e.eventType,
			AggregateType: e.aggregate,
			Topic:         topics[e.stream],
		}
	}
	return reg, nil
}

// Topics lists the distinct topics events are routed to, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, d := range r.descriptors {
		if !slices.Contains(topics, d.Topic) {
			topics = append(topics, d.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against the catalog and decodes its payload. Every
// error is a NonRetryableError: an unknown type has no topic, anything else
// is a decode failure.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.descriptors[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(enums.DLQReasonNoTopic, fmt.Errorf("unsupported event type %s", event.EventType))
	}
	undecodable := func(format string, args ...any) error {
		return NewNonRetryableError(enums.DLQReasonDecode, fmt.Errorf(format, args...))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, undecodable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, undecodable("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, undecodable("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, undecodable("payload missing for %s", event.EventType)
	}
	payload, err := r.decoders.Decode(event.EventType, env.Version, env.Data)
	if err != nil {
		return nil, undecodable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
