package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// User is the local profile of an identity issued by the external identity
// provider. Only display data lives here; credentials never do.
type User struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	DisplayName       string     `gorm:"column:display_name;type:text;not null"`
	DisplayNameAm     *string    `gorm:"column:display_name_am;type:text"`
	Role              enums.Role `gorm:"column:role;type:text;not null"`
	PhoneNumber       *string    `gorm:"column:phone_number;type:text"`
	PreferredLanguage string     `gorm:"column:preferred_language;type:text;not null;default:'en'"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
