package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// Projection statuses seen by each side of a captured order.
const (
	StatusPaid     = "paid"
	StatusReceived = "received"
)

// PaymentDTO is one row of the paid/received view.
type PaymentDTO struct {
	OrderID         uuid.UUID                `json:"orderId"`
	CheckoutGroupID uuid.UUID                `json:"checkoutGroupId"`
	CounterpartyID  uuid.UUID                `json:"counterpartyId"`
	Amount          decimal.Decimal          `json:"amount"`
	Currency        string                   `json:"currency"`
	Method          enums.PaymentMethod      `json:"method"`
	Status          string                   `json:"status"`
	LedgerStatus    enums.PaymentEventStatus `json:"ledgerStatus"`
	CapturedAt      time.Time                `json:"capturedAt"`
}

// PaymentList is a page of the projection.
type PaymentList struct {
	Payments []PaymentDTO        `json:"payments"`
	Meta     pagination.PageMeta `json:"meta"`
}

// PaymentEventDTO exposes one ledger entry.
type PaymentEventDTO struct {
	ID             uuid.UUID                `json:"id"`
	Status         enums.PaymentEventStatus `json:"status"`
	Amount         decimal.Decimal          `json:"amount"`
	Currency       string                   `json:"currency"`
	Method         enums.PaymentMethod      `json:"method"`
	SettlementID   *uuid.UUID               `json:"settlementId,omitempty"`
	PayoutMethodID *uuid.UUID               `json:"payoutMethodId,omitempty"`
	ActorRole      enums.Role               `json:"actorRole"`
	Note           *string                  `json:"note,omitempty"`
	CreatedAt      time.Time                `json:"createdAt"`
}

func toEventDTO(e models.PaymentEvent) PaymentEventDTO {
	return PaymentEventDTO{
		ID:             e.ID,
		Status:         e.Status,
		Amount:         e.Amount,
		Currency:       e.Currency,
		Method:         e.Method,
		SettlementID:   e.SettlementID,
		PayoutMethodID: e.PayoutMethodID,
		ActorRole:      e.ActorRole,
		Note:           e.Note,
		CreatedAt:      e.CreatedAt,
	}
}
