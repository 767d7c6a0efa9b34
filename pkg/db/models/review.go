package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// Review is a buyer rating of a listing or a farmer. One per author and target.
type Review struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AuthorID   uuid.UUID              `gorm:"column:author_id;type:uuid;not null;uniqueIndex:ux_reviews_author_target,priority:1"`
	TargetType enums.ReviewTargetType `gorm:"column:target_type;type:text;not null;uniqueIndex:ux_reviews_author_target,priority:2;index:ix_reviews_target,priority:1"`
	TargetID   uuid.UUID              `gorm:"column:target_id;type:uuid;not null;uniqueIndex:ux_reviews_author_target,priority:3;index:ix_reviews_target,priority:2"`
	Rating     int                    `gorm:"column:rating;not null"`
	Comment    string                 `gorm:"column:comment;type:text;not null"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
