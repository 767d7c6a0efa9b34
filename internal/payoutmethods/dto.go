package payoutmethods

import (
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/phone"
)

// AddInput is a new payout method. Bank fields apply to bank methods,
// Provider and PhoneNumber to mobile money.
type AddInput struct {
	Type          enums.PayoutMethodType
	Label         *string
	BankName      string
	AccountNumber string
	AccountHolder string
	Provider      enums.MobileMoneyProvider
	PhoneNumber   string
}

// PayoutMethodDTO never exposes full account or phone numbers.
type PayoutMethodDTO struct {
	ID            uuid.UUID                  `json:"id"`
	OwnerID       uuid.UUID                  `json:"ownerId"`
	Type          enums.PayoutMethodType     `json:"type"`
	Label         *string                    `json:"label,omitempty"`
	BankName      *string                    `json:"bankName,omitempty"`
	AccountNumber *string                    `json:"accountNumber,omitempty"`
	AccountHolder *string                    `json:"accountHolder,omitempty"`
	Provider      *enums.MobileMoneyProvider `json:"provider,omitempty"`
	PhoneNumber   *string                    `json:"phoneNumber,omitempty"`
	IsVerified    bool                       `json:"isVerified"`
	VerifiedAt    *time.Time                 `json:"verifiedAt,omitempty"`
	CreatedAt     time.Time                  `json:"createdAt"`
}

// VerificationDTO acknowledges that a code was sent.
type VerificationDTO struct {
	PayoutMethodID uuid.UUID `json:"payoutMethodId"`
	Destination    string    `json:"destination"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func toDTO(m *models.PayoutMethod) PayoutMethodDTO {
	return PayoutMethodDTO{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		Type:          m.Type,
		Label:         m.Label,
		BankName:      m.BankName,
		AccountNumber: maskPtr(m.AccountNumber),
		AccountHolder: m.AccountHolder,
		Provider:      m.Provider,
		PhoneNumber:   maskPtr(m.PhoneNumber),
		IsVerified:    m.IsVerified,
		VerifiedAt:    m.VerifiedAt,
		CreatedAt:     m.CreatedAt,
	}
}

func maskPtr(v *string) *string {
	if v == nil {
		return nil
	}
	masked := phone.Mask(*v)
	return &masked
}
