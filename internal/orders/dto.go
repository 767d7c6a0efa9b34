package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// LineItemDTO is the frozen listing snapshot of one order line.
type LineItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	ListingID     uuid.UUID       `json:"listingId"`
	ListingName   string          `json:"listingName"`
	ListingNameAm *string         `json:"listingNameAm,omitempty"`
	Unit          string          `json:"unit"`
	Quantity      int             `json:"quantity"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
}

// OrderDTO is returned by every order endpoint.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	CheckoutGroupID uuid.UUID           `json:"checkoutGroupId"`
	BuyerID         uuid.UUID           `json:"buyerId"`
	BuyerName       string              `json:"buyerName,omitempty"`
	FarmerID        uuid.UUID           `json:"farmerId"`
	FarmerName      string              `json:"farmerName,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	AllowedNext     []enums.OrderStatus `json:"allowedNext"`
	Currency        string              `json:"currency"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	DeliveryAddress string              `json:"deliveryAddress"`
	DeliveryCity    *string             `json:"deliveryCity,omitempty"`
	ContactPhone    *string             `json:"contactPhone,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	CancelledBy     *enums.Role         `json:"cancelledBy,omitempty"`
	CancelReason    *string             `json:"cancelReason,omitempty"`
	Items           []LineItemDTO       `json:"items"`
	ConfirmedAt     *time.Time          `json:"confirmedAt,omitempty"`
	ShippedAt       *time.Time          `json:"shippedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders []OrderDTO          `json:"orders"`
	Meta   pagination.PageMeta `json:"meta"`
}

// StatusEventDTO is one entry of an order's transition history.
type StatusEventDTO struct {
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ActorRole enums.Role        `json:"actorRole"`
	ActorID   *uuid.UUID        `json:"actorId,omitempty"`
	Reason    *string           `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ListQuery is the input of a role-scoped order listing. Perspective selects
// whether the caller is listed as buyer or farmer; admins may omit it.
type ListQuery struct {
	Perspective enums.Role
	Status      *enums.OrderStatus
	Page        pagination.Page
}

// TransitionInput requests a status change.
type TransitionInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Reason  *string
}

// ToDTO converts a persisted order.
func ToDTO(o *models.Order) OrderDTO {
	items := make([]LineItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItemDTO{
			ID:            it.ID,
			ListingID:     it.ListingID,
			ListingName:   it.ListingName,
			ListingNameAm: it.ListingNameAm,
			Unit:          it.Unit,
			Quantity:      it.Quantity,
			PricePerUnit:  it.PricePerUnit,
			LineTotal:     it.LineTotal,
		})
	}
	next := AllowedTargets(o.Status)
	if next == nil {
		next = []enums.OrderStatus{}
	}
	return OrderDTO{
		ID:              o.ID,
		CheckoutGroupID: o.CheckoutGroupID,
		BuyerID:         o.BuyerID,
		FarmerID:        o.FarmerID,
		Status:          o.Status,
		AllowedNext:     next,
		Currency:        o.Currency,
		Subtotal:        o.Subtotal,
		PaymentMethod:   o.PaymentMethod,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryCity:    o.DeliveryCity,
		ContactPhone:    o.ContactPhone,
		Notes:           o.Notes,
		CancelledBy:     o.CancelledBy,
		CancelReason:    o.CancelReason,
		Items:           items,
		ConfirmedAt:     o.ConfirmedAt,
		ShippedAt:       o.ShippedAt,
		CompletedAt:     o.CompletedAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toStatusEventDTO(e models.OrderStatusEvent) StatusEventDTO {
	return StatusEventDTO{
		From:      e.FromStatus,
		To:        e.ToStatus,
		ActorRole: e.ActorRole,
		ActorID:   e.ActorID,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
}
