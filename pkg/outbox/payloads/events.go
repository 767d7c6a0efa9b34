package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// OrderRef summarizes one per-farmer order produced by a checkout.
type OrderRef struct {
	OrderID  uuid.UUID       `json:"orderId"`
	FarmerID uuid.UUID       `json:"farmerId"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// OrderCreatedEvent signals a checkout that produced one order per farmer.
type OrderCreatedEvent struct {
	CheckoutGroupID uuid.UUID  `json:"checkoutGroupId"`
	BuyerID         uuid.UUID  `json:"buyerId"`
	Currency        string     `json:"currency"`
	Orders          []OrderRef `json:"orders"`
}

// OrderStatusChangedEvent is emitted for every applied order transition.
type OrderStatusChangedEvent struct {
	OrderID         uuid.UUID         `json:"orderId"`
	CheckoutGroupID uuid.UUID         `json:"checkoutGroupId"`
	BuyerID         uuid.UUID         `json:"buyerId"`
	FarmerID        uuid.UUID         `json:"farmerId"`
	From            enums.OrderStatus `json:"from"`
	To              enums.OrderStatus `json:"to"`
	ActorRole       enums.Role        `json:"actorRole"`
	Reason          string            `json:"reason,omitempty"`
}

// PaymentRecordedEvent mirrors each append to the payment event log.
type PaymentRecordedEvent struct {
	PaymentEventID uuid.UUID                `json:"paymentEventId"`
	OrderID        uuid.UUID                `json:"orderId"`
	BuyerID        uuid.UUID                `json:"buyerId"`
	FarmerID       uuid.UUID                `json:"farmerId"`
	Status         enums.PaymentEventStatus `json:"status"`
	Amount         decimal.Decimal          `json:"amount"`
	Currency       string                   `json:"currency"`
}

// PayoutVerificationRequestedEvent carries a freshly issued one-time code to
// the out-of-band delivery channel. Only the hash is kept server-side.
type PayoutVerificationRequestedEvent struct {
	PayoutMethodID uuid.UUID `json:"payoutMethodId"`
	OwnerID        uuid.UUID `json:"ownerId"`
	Destination    string    `json:"destination"`
	Code           string    `json:"code"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// PayoutMethodVerifiedEvent is emitted once a code has been confirmed.
type PayoutMethodVerifiedEvent struct {
	PayoutMethodID uuid.UUID `json:"payoutMethodId"`
	OwnerID        uuid.UUID `json:"ownerId"`
	VerifiedAt     time.Time `json:"verifiedAt"`
}

// SettlementRequestedEvent is emitted when a farmer asks to be paid out.
type SettlementRequestedEvent struct {
	SettlementID   uuid.UUID       `json:"settlementId"`
	OrderID        uuid.UUID       `json:"orderId"`
	FarmerID       uuid.UUID       `json:"farmerId"`
	PayoutMethodID uuid.UUID       `json:"payoutMethodId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// SettlementResolvedEvent reports the admin outcome of a settlement.
type SettlementResolvedEvent struct {
	SettlementID uuid.UUID              `json:"settlementId"`
	OrderID      uuid.UUID              `json:"orderId"`
	FarmerID     uuid.UUID              `json:"farmerId"`
	Status       enums.SettlementStatus `json:"status"`
	Reason       string                 `json:"reason,omitempty"`
}

// ReviewSubmittedEvent is emitted after a review is stored.
type ReviewSubmittedEvent struct {
	ReviewID   uuid.UUID              `json:"reviewId"`
	AuthorID   uuid.UUID              `json:"authorId"`
	TargetType enums.ReviewTargetType `json:"targetType"`
	TargetID   uuid.UUID              `json:"targetId"`
	FarmerID   uuid.UUID              `json:"farmerId"`
	Rating     int                    `json:"rating"`
}
