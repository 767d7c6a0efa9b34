package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is the catalog read model consulted at order creation. Price and
// availability are copied onto order line items, never referenced live.
type Listing struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	FarmerID          uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null;index"`
	Name              string          `gorm:"column:name;type:text;not null"`
	NameAm            *string         `gorm:"column:name_am;type:text"`
	Unit              string          `gorm:"column:unit;type:text;not null;default:'kg'"`
	PricePerUnit      decimal.Decimal `gorm:"column:price_per_unit;type:numeric(14,2);not null"`
	AvailableQuantity int             `gorm:"column:available_quantity;not null;default:0"`
	ImageRefs         []string        `gorm:"column:image_refs;type:jsonb;serializer:json"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
