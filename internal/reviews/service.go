package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500

	uniqueAuthorTarget = "ux_reviews_author_target"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type nameResolver interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service handles buyer reviews of listings and farmers.
type Service interface {
	CanReview(ctx context.Context, actor auth.Actor, targetType enums.ReviewTargetType, targetID uuid.UUID) (*EligibilityDTO, error)
	Submit(ctx context.Context, actor auth.Actor, input SubmitInput) (*ReviewDTO, error)
	ListForTarget(ctx context.Context, targetType enums.ReviewTargetType, targetID uuid.UUID, page pagination.Page) (*ReviewList, error)
	ListMine(ctx context.Context, actor auth.Actor) ([]ReviewDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	names  nameResolver
}

func NewService(repo Repository, tx txRunner, publisher outboxPublisher, names nameResolver) (Service, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("reviews repository required")
	case tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case publisher == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, names: names}, nil
}

func (s *service) CanReview(ctx context.Context, actor auth.Actor, targetType enums.ReviewTargetType, targetID uuid.UUID) (*EligibilityDTO, error) {
	if err := validateTarget(targetType, targetID); err != nil {
		return nil, err
	}
	reason, _, err := s.eligibility(ctx, s.repo, actor, targetType, targetID)
	if err != nil {
		return nil, err
	}
	return &EligibilityDTO{CanReview: reason == ReasonEligible, Reason: reason}, nil
}

// eligibility returns the reason code plus the farmer tied to the purchase.
func (s *service) eligibility(ctx context.Context, repo Repository, actor auth.Actor, targetType enums.ReviewTargetType, targetID uuid.UUID) (string, uuid.UUID, error) {
	if actor.Role != enums.RoleBuyer {
		return ReasonNotBuyer, uuid.Nil, nil
	}
	exists, err := repo.Exists(ctx, actor.UserID, targetType, targetID)
	if err != nil {
		return "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}
	if exists {
		return ReasonAlreadyReviewed, uuid.Nil, nil
	}
	farmerID, ok, err := repo.CompletedPurchaseFarmer(ctx, actor.UserID, targetType, targetID)
	if err != nil {
		return "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}
	if !ok {
		return ReasonNoPurchase, uuid.Nil, nil
	}
	return ReasonEligible, farmerID, nil
}

func (s *service) Submit(ctx context.Context, actor auth.Actor, input SubmitInput) (*ReviewDTO, error) {
	if err := validateTarget(input.TargetType, input.TargetID); err != nil {
		return nil, err
	}
	comment, err := validateContent(input.Rating, input.Comment)
	if err != nil {
		return nil, err
	}

	var created *models.Review
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reason, farmerID, err := s.eligibility(ctx, repo, actor, input.TargetType, input.TargetID)
		if err != nil {
			return err
		}
		switch reason {
		case ReasonNotBuyer:
			return pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can submit reviews")
		case ReasonAlreadyReviewed:
			return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this item")
		case ReasonNoPurchase:
			return pkgerrors.New(pkgerrors.CodeForbidden, "a completed order is required before reviewing").
				WithDetails(map[string]any{"reason": reason})
		}

		review := &models.Review{
			AuthorID:   actor.UserID,
			TargetType: input.TargetType,
			TargetID:   input.TargetID,
			Rating:     input.Rating,
			Comment:    comment,
		}
		if err := repo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, uniqueAuthorTarget) {
				return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this item")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		created = review

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         actor.Ref(),
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:   review.ID,
				AuthorID:   review.AuthorID,
				TargetType: review.TargetType,
				TargetID:   review.TargetID,
				FarmerID:   farmerID,
				Rating:     review.Rating,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit review event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*created)
	return &dto, nil
}

func (s *service) ListForTarget(ctx context.Context, targetType enums.ReviewTargetType, targetID uuid.UUID, page pagination.Page) (*ReviewList, error) {
	if err := validateTarget(targetType, targetID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	rows, total, err := s.repo.ListForTarget(ctx, targetType, targetID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	summary, err := s.repo.SummaryFor(ctx, targetType, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize reviews")
	}

	out := make([]ReviewDTO, 0, len(rows))
	authors := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
		authors = append(authors, row.AuthorID)
	}
	if s.names != nil && len(authors) > 0 {
		// display names are cosmetic; a lookup failure leaves them blank
		if names, err := s.names.DisplayNames(ctx, authors); err == nil {
			for i := range out {
				out[i].AuthorName = names[out[i].AuthorID]
			}
		}
	}
	return &ReviewList{Reviews: out, Summary: summary, Meta: pagination.MetaFor(page, total)}, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor) ([]ReviewDTO, error) {
	rows, err := s.repo.ListByAuthor(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	out := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// Delete removes a review. Authors may delete their own; admins any.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if review.AuthorID != actor.UserID && !actor.Privileged() {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}

func validateTarget(targetType enums.ReviewTargetType, targetID uuid.UUID) error {
	if !targetType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "targetType must be listing or farmer")
	}
	if targetID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "targetId is required")
	}
	return nil
}

func validateContent(rating int, comment string) (string, error) {
	if rating < MinRating || rating > MaxRating {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "rating must be between %d and %d", MinRating, MaxRating)
	}
	trimmed := strings.TrimSpace(comment)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "comment is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxCommentLength {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "comment must be at most %d characters", MaxCommentLength)
	}
	return trimmed, nil
}
