package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// PaymentEvent is one append-only entry of the payment ledger. The latest entry
// per order is that order's payment state.
type PaymentEvent struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID        uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index"`
	FarmerID       uuid.UUID                `gorm:"column:farmer_id;type:uuid;not null;index"`
	Status         enums.PaymentEventStatus `gorm:"column:status;type:text;not null"`
	Amount         decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency       string                   `gorm:"column:currency;type:text;not null"`
	Method         enums.PaymentMethod      `gorm:"column:method;type:text;not null"`
	SettlementID   *uuid.UUID               `gorm:"column:settlement_id;type:uuid"`
	PayoutMethodID *uuid.UUID               `gorm:"column:payout_method_id;type:uuid"`
	ActorRole      enums.Role               `gorm:"column:actor_role;type:text;not null"`
	ActorID        *uuid.UUID               `gorm:"column:actor_id;type:uuid"`
	Note           *string                  `gorm:"column:note;type:text"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
}

// Settlement moves captured funds for one order to a farmer payout method.
// A pending settlement is in flight and pins its payout method.
type Settlement struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_settlements_order"`
	FarmerID       uuid.UUID              `gorm:"column:farmer_id;type:uuid;not null;index"`
	PayoutMethodID uuid.UUID              `gorm:"column:payout_method_id;type:uuid;not null;index"`
	Amount         decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency       string                 `gorm:"column:currency;type:text;not null"`
	Status         enums.SettlementStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	FailureReason  *string                `gorm:"column:failure_reason;type:text"`
	ResolvedAt     *time.Time             `gorm:"column:resolved_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
