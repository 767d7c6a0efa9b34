package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/idempotency"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
	pkgpubsub "github.com/gebeya-market/gebeya-backend/pkg/pubsub"
)

type memoryGuard struct {
	mu       sync.Mutex
	states   map[string]idempotency.State
	failNext error
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{states: map[string]idempotency.State{}}
}

func (g *memoryGuard) Claim(_ context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return idempotency.InFlight, err
	}
	key := consumer + ":" + eventID.String()
	if state, ok := g.states[key]; ok {
		return state, nil
	}
	g.states[key] = idempotency.InFlight
	return idempotency.Acquired, nil
}

func (g *memoryGuard) Complete(_ context.Context, consumer string, eventID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[consumer+":"+eventID.String()] = idempotency.Done
	return nil
}

func (g *memoryGuard) Release(_ context.Context, consumer string, eventID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, consumer+":"+eventID.String())
	return nil
}

type noopReceiver struct{}

func (noopReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

type consumerFixture struct {
	conn     *gorm.DB
	consumer *Consumer
	guard    *memoryGuard
	store    *memoryCounterStore
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	conn := openNotifications(t)
	guard := newMemoryGuard()
	store := newMemoryCounterStore()
	consumer, err := NewConsumer("order-notifications", NewRepository(conn), db.NewFromGorm(conn), noopReceiver{}, guard, NewCounter(store, logger.Nop()), logger.Nop())
	require.NoError(t, err)
	return &consumerFixture{conn: conn, consumer: consumer, guard: guard, store: store}
}

func message(t *testing.T, eventType enums.OutboxEventType, data any) (*pubsub.Message, uuid.UUID) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	eventID := uuid.New()
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		EventType:  string(eventType),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       body,
		Attributes: map[string]string{pkgpubsub.AttrEventType: string(eventType), pkgpubsub.AttrEventID: eventID.String()},
	}, eventID
}

func (f *consumerFixture) rowsFor(t *testing.T, userID uuid.UUID) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, f.conn.Where("user_id = ?", userID).Find(&rows).Error)
	return rows
}

func TestConsumerNotifiesCounterparty(t *testing.T) {
	f := newConsumerFixture(t)
	buyer, farmer := uuid.New(), uuid.New()

	msg, _ := message(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID:   uuid.New(),
		BuyerID:   buyer,
		FarmerID:  farmer,
		From:      enums.OrderStatusPending,
		To:        enums.OrderStatusConfirmed,
		ActorRole: enums.RoleFarmer,
	})
	result := f.consumer.process(context.Background(), msg)
	assert.True(t, result.ack)

	rows := f.rowsFor(t, buyer)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.NotificationOrderStatus, rows[0].Type)
	assert.Contains(t, rows[0].Message, "confirmed")
	assert.Contains(t, rows[0].MessageAm, "ተረጋግጧል")
	assert.Empty(t, f.rowsFor(t, farmer))
	assert.EqualValues(t, 1, f.store.lastUnread(t, buyer))
}

func TestConsumerSystemCancelNotifiesBoth(t *testing.T) {
	f := newConsumerFixture(t)
	buyer, farmer := uuid.New(), uuid.New()

	msg, _ := message(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID:   uuid.New(),
		BuyerID:   buyer,
		FarmerID:  farmer,
		From:      enums.OrderStatusPending,
		To:        enums.OrderStatusCancelled,
		ActorRole: enums.RoleSystem,
		Reason:    "expired",
	})
	require.True(t, f.consumer.process(context.Background(), msg).ack)
	require.Len(t, f.rowsFor(t, buyer), 1)
	require.Len(t, f.rowsFor(t, farmer), 1)
	assert.Contains(t, f.rowsFor(t, farmer)[0].Message, "Reason: expired")
}

func TestConsumerDeduplicatesRedelivery(t *testing.T) {
	f := newConsumerFixture(t)
	farmer := uuid.New()
	msg, _ := message(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{
		CheckoutGroupID: uuid.New(),
		BuyerID:         uuid.New(),
		Currency:        "ETB",
		Orders:          []payloads.OrderRef{{OrderID: uuid.New(), FarmerID: farmer, Subtotal: decimal.NewFromInt(120)}},
	})

	require.True(t, f.consumer.process(context.Background(), msg).ack)
	require.True(t, f.consumer.process(context.Background(), msg).ack)

	rows := f.rowsFor(t, farmer)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Message, "120.00 ETB")
}

func TestConsumerNacksWhileAnotherWorkerHoldsClaim(t *testing.T) {
	f := newConsumerFixture(t)
	farmer := uuid.New()
	msg, eventID := message(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{
		CheckoutGroupID: uuid.New(),
		BuyerID:         uuid.New(),
		Currency:        "ETB",
		Orders:          []payloads.OrderRef{{OrderID: uuid.New(), FarmerID: farmer, Subtotal: decimal.NewFromInt(40)}},
	})
	f.guard.states["order-notifications:"+eventID.String()] = idempotency.InFlight

	assert.True(t, f.consumer.process(context.Background(), msg).nack)
	assert.Empty(t, f.rowsFor(t, farmer))
}

func TestConsumerNacksOnGuardFailureAndRetries(t *testing.T) {
	f := newConsumerFixture(t)
	owner := uuid.New()
	msg, _ := message(t, enums.EventPayoutVerificationRequested, payloads.PayoutVerificationRequestedEvent{
		PayoutMethodID: uuid.New(),
		OwnerID:        owner,
		Destination:    "***4567",
		Code:           "482913",
		ExpiresAt:      time.Now().Add(10 * time.Minute),
	})

	f.guard.failNext = errors.New("redis down")
	assert.True(t, f.consumer.process(context.Background(), msg).nack)
	assert.Empty(t, f.rowsFor(t, owner))

	require.True(t, f.consumer.process(context.Background(), msg).ack)
	rows := f.rowsFor(t, owner)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Message, "482913")
}

func TestConsumerAcksIrrelevantAndMalformed(t *testing.T) {
	f := newConsumerFixture(t)

	msg, _ := message(t, enums.EventPaymentRecorded, payloads.PaymentRecordedEvent{OrderID: uuid.New()})
	assert.True(t, f.consumer.process(context.Background(), msg).ack)

	bad := &pubsub.Message{ID: "x", Data: []byte("{"), Attributes: map[string]string{}}
	assert.True(t, f.consumer.process(context.Background(), bad).ack)

	var count int64
	require.NoError(t, f.conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}
