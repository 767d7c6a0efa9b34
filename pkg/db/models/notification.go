package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// Notification stores an in-app message for one user in both languages.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_notifications_event_user,priority:2"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	TitleAm   string                 `gorm:"column:title_am;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	MessageAm string                 `gorm:"column:message_am;type:text;not null"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	EventID   *uuid.UUID             `gorm:"column:event_id;type:uuid;uniqueIndex:ux_notifications_event_user,priority:1"`
	Link      *string                `gorm:"column:link;type:text"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
