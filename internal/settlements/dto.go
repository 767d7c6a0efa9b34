package settlements

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

type SettlementDTO struct {
	ID             uuid.UUID              `json:"id"`
	OrderID        uuid.UUID              `json:"orderId"`
	FarmerID       uuid.UUID              `json:"farmerId"`
	PayoutMethodID uuid.UUID              `json:"payoutMethodId"`
	Amount         decimal.Decimal        `json:"amount"`
	Currency       string                 `json:"currency"`
	Status         enums.SettlementStatus `json:"status"`
	FailureReason  *string                `json:"failureReason,omitempty"`
	ResolvedAt     *time.Time             `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

type SettlementList struct {
	Settlements []SettlementDTO     `json:"settlements"`
	Meta        pagination.PageMeta `json:"meta"`
}

// RequestInput asks for the captured funds of an order to be paid out.
type RequestInput struct {
	OrderID        uuid.UUID
	PayoutMethodID uuid.UUID
}

func toDTO(s *models.Settlement) SettlementDTO {
	return SettlementDTO{
		ID:             s.ID,
		OrderID:        s.OrderID,
		FarmerID:       s.FarmerID,
		PayoutMethodID: s.PayoutMethodID,
		Amount:         s.Amount,
		Currency:       s.Currency,
		Status:         s.Status,
		FailureReason:  s.FailureReason,
		ResolvedAt:     s.ResolvedAt,
		CreatedAt:      s.CreatedAt,
	}
}
