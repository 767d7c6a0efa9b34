package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateCheckoutGroup OutboxAggregateType = "checkout_group"
	AggregatePayoutMethod  OutboxAggregateType = "payout_method"
	AggregateSettlement    OutboxAggregateType = "settlement"
	AggregateReview        OutboxAggregateType = "review"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckoutGroup,
	AggregatePayoutMethod,
	AggregateSettlement,
	AggregateReview,
}

func (a OutboxAggregateType) IsValid() bool { return member(validAggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated                OutboxEventType = "order_created"
	EventOrderStatusChanged          OutboxEventType = "order_status_changed"
	EventPaymentRecorded             OutboxEventType = "payment_recorded"
	EventPayoutVerificationRequested OutboxEventType = "payout_method_verification_requested"
	EventPayoutMethodVerified        OutboxEventType = "payout_method_verified"
	EventSettlementRequested         OutboxEventType = "settlement_requested"
	EventSettlementResolved          OutboxEventType = "settlement_resolved"
	EventReviewSubmitted             OutboxEventType = "review_submitted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventPaymentRecorded,
	EventPayoutVerificationRequested,
	EventPayoutMethodVerified,
	EventSettlementRequested,
	EventSettlementResolved,
	EventReviewSubmitted,
}

func (e OutboxEventType) IsValid() bool { return member(validOutboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("outbox event type", validOutboxEventTypes, value)
}

// OutboxDLQReason classifies why an event was parked in outbox_dlq.
type OutboxDLQReason string

const (
	DLQReasonMaxAttempts OutboxDLQReason = "max_attempts"
	DLQReasonNoTopic     OutboxDLQReason = "no_topic"
	DLQReasonDecode      OutboxDLQReason = "decode"
)
