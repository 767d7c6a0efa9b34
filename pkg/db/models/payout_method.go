package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// PayoutMethod is a farmer-owned settlement destination. Bank columns are set
// for bank methods, provider and phone for mobile money. Removal is a soft
// delete so settlement history keeps its reference.
type PayoutMethod struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID       uuid.UUID                  `gorm:"column:owner_id;type:uuid;not null;index"`
	Type          enums.PayoutMethodType     `gorm:"column:type;type:text;not null"`
	Label         *string                    `gorm:"column:label;type:text"`
	BankName      *string                    `gorm:"column:bank_name;type:text"`
	AccountNumber *string                    `gorm:"column:account_number;type:text"`
	AccountHolder *string                    `gorm:"column:account_holder;type:text"`
	Provider      *enums.MobileMoneyProvider `gorm:"column:provider;type:text"`
	PhoneNumber   *string                    `gorm:"column:phone_number;type:text"`
	IsVerified    bool                       `gorm:"column:is_verified;not null;default:false"`
	VerifiedAt    *time.Time                 `gorm:"column:verified_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt             `gorm:"column:deleted_at;index"`
}
