package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// Eligibility reasons returned by CanReview.
const (
	ReasonEligible        = "eligible"
	ReasonAlreadyReviewed = "already_reviewed"
	ReasonNoPurchase      = "no_completed_purchase"
	ReasonNotBuyer        = "buyers_only"
)

type SubmitInput struct {
	TargetType enums.ReviewTargetType `json:"targetType" validate:"required,oneof=listing farmer"`
	TargetID   uuid.UUID              `json:"targetId" validate:"required"`
	Rating     int                    `json:"rating" validate:"required,min=1,max=5"`
	Comment    string                 `json:"comment" validate:"required"`
}

type ReviewDTO struct {
	ID         uuid.UUID              `json:"id"`
	AuthorID   uuid.UUID              `json:"authorId"`
	AuthorName string                 `json:"authorName,omitempty"`
	TargetType enums.ReviewTargetType `json:"targetType"`
	TargetID   uuid.UUID              `json:"targetId"`
	Rating     int                    `json:"rating"`
	Comment    string                 `json:"comment"`
	CreatedAt  time.Time              `json:"createdAt"`
}

type ReviewList struct {
	Reviews []ReviewDTO         `json:"reviews"`
	Summary Summary             `json:"summary"`
	Meta    pagination.PageMeta `json:"meta"`
}

type EligibilityDTO struct {
	CanReview bool   `json:"canReview"`
	Reason    string `json:"reason"`
}

func toDTO(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         r.ID,
		AuthorID:   r.AuthorID,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
