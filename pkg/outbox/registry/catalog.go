// Package registry is the single catalog of outbox event types: which
// aggregate emits each one, which topic carries it and how its payload
// decodes. The publisher resolves rows against it and consumers decode
// deliveries with it.
package registry

import (
	"encoding/json"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
)

type stream int

const (
	ordersStream stream = iota
	payoutsStream
)

type decodeFunc func(json.RawMessage) (any, error)

type catalogEntry struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	stream    stream
	decode    decodeFunc
}

// Order and review events share the orders stream so a farmer's timeline is
// consumed in order; payout and settlement events have their own.
var catalog = []catalogEntry{
	{enums.EventOrderCreated, enums.AggregateCheckoutGroup, ordersStream, typed[payloads.OrderCreatedEvent]},
	{enums.EventOrderStatusChanged, enums.AggregateOrder, ordersStream, typed[payloads.OrderStatusChangedEvent]},
	{enums.EventPaymentRecorded, enums.AggregateOrder, ordersStream, typed[payloads.PaymentRecordedEvent]},
	{enums.EventReviewSubmitted, enums.AggregateReview, ordersStream, typed[payloads.ReviewSubmittedEvent]},
	{enums.EventPayoutVerificationRequested, enums.AggregatePayoutMethod, payoutsStream, typed[payloads.PayoutVerificationRequestedEvent]},
	{enums.EventPayoutMethodVerified, enums.AggregatePayoutMethod, payoutsStream, typed[payloads.PayoutMethodVerifiedEvent]},
	{enums.EventSettlementRequested, enums.AggregateSettlement, payoutsStream, typed[payloads.SettlementRequestedEvent]},
	{enums.EventSettlementResolved, enums.AggregateSettlement, payoutsStream, typed[payloads.SettlementResolvedEvent]},
}

// typed decodes into a fresh *T.
func typed[T any](raw json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
