package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// Order is the per-farmer order produced at checkout. Items and Subtotal are
// frozen at creation; only the status columns move afterwards.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CheckoutGroupID uuid.UUID           `gorm:"column:checkout_group_id;type:uuid;not null;index"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	FarmerID        uuid.UUID           `gorm:"column:farmer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency        string              `gorm:"column:currency;type:text;not null;default:'ETB'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,2);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	DeliveryAddress string              `gorm:"column:delivery_address;type:text;not null"`
	DeliveryCity    *string             `gorm:"column:delivery_city;type:text"`
	ContactPhone    *string             `gorm:"column:contact_phone;type:text"`
	Notes           *string             `gorm:"column:notes;type:text"`
	CancelledBy     *enums.Role         `gorm:"column:cancelled_by;type:text"`
	CancelReason    *string             `gorm:"column:cancel_reason;type:text"`
	ConfirmedAt     *time.Time          `gorm:"column:confirmed_at"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at"`
	CompletedAt     *time.Time          `gorm:"column:completed_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem snapshots a listing at checkout time.
type OrderLineItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID     uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index"`
	ListingName   string          `gorm:"column:listing_name;type:text;not null"`
	ListingNameAm *string         `gorm:"column:listing_name_am;type:text"`
	Unit          string          `gorm:"column:unit;type:text;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	PricePerUnit  decimal.Decimal `gorm:"column:price_per_unit;type:numeric(14,2);not null"`
	LineTotal     decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OrderStatusEvent is the append-only history of order transitions.
type OrderStatusEvent struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:text;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:text;not null"`
	ActorRole  enums.Role        `gorm:"column:actor_role;type:text;not null"`
	ActorID    *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	Reason     *string           `gorm:"column:reason;type:text"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
