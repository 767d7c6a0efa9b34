package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
)

func TestResolveRoutesByStream(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateCheckoutGroup,
		AggregateID:   uuid.New(),
		Payload: envelope(t, 1, payloads.OrderCreatedEvent{
			CheckoutGroupID: uuid.New(),
			Currency:        "ETB",
			Orders:          []payloads.OrderRef{{OrderID: orderID, FarmerID: uuid.New(), Subtotal: decimal.NewFromInt(120)}},
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	created, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, orderID, created.Orders[0].OrderID)

	resolved, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventSettlementResolved,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   uuid.New(),
		Payload:       envelope(t, 1, payloads.SettlementResolvedEvent{SettlementID: uuid.New(), Status: enums.SettlementCompleted}),
	})
	require.NoError(t, err)
	assert.Equal(t, "payouts-topic", resolved.Descriptor.Topic)

	assert.Equal(t, []string{"orders-topic", "payouts-topic"}, reg.Topics())
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := payloads.OrderStatusChangedEvent{From: enums.OrderStatusPending, To: enums.OrderStatusConfirmed}

	tests := []struct {
		name   string
		event  models.OutboxEvent
		reason enums.OutboxDLQReason
	}{
		{
			name:   "unknown event type",
			event:  models.OutboxEvent{EventType: "listing_archived", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelope(t, 1, valid)},
			reason: enums.DLQReasonNoTopic,
		},
		{
			name:   "aggregate mismatch",
			event:  models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateReview, AggregateID: uuid.New(), Payload: envelope(t, 1, valid)},
			reason: enums.DLQReasonDecode,
		},
		{
			name:   "missing aggregate id",
			event:  models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, Payload: envelope(t, 1, valid)},
			reason: enums.DLQReasonDecode,
		},
		{
			name:   "null payload",
			event:  models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelope(t, 1, nil)},
			reason: enums.DLQReasonDecode,
		},
		{
			name:   "unknown envelope version",
			event:  models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelope(t, 7, valid)},
			reason: enums.DLQReasonDecode,
		},
		{
			name:   "garbage envelope",
			event:  models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":`)},
			reason: enums.DLQReasonDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.event)
			var nonRetry NonRetryableError
			require.True(t, errors.As(err, &nonRetry), "got %v", err)
			assert.Equal(t, tt.reason, nonRetry.Reason)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{PayoutsTopic: "payouts"})
	require.Error(t, err)
}

func TestCatalogCoversEveryEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, e := range catalog {
		_, ok := reg.descriptors[e.eventType]
		assert.True(t, ok, e.eventType)
		assert.True(t, e.eventType.IsValid(), e.eventType)
		assert.True(t, e.aggregate.IsValid(), e.aggregate)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", PayoutsTopic: "payouts-topic"})
	require.NoError(t, err)
	return reg
}

// envelope wraps data the way outbox.Service.Emit does; nil data encodes as
// JSON null.
func envelope(t *testing.T, version int, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return body
}
