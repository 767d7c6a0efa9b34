package reviews

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// Summary aggregates the ratings of one target.
type Summary struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// Repository persists reviews and answers purchase-eligibility questions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	Exists(ctx context.Context, authorID uuid.UUID, targetType enums.ReviewTargetType, targetID uuid.UUID) (bool, error)
	ListForTarget(ctx context.Context, targetType enums.ReviewTargetType, targetID uuid.UUID, page pagination.Page) ([]models.Review, int64, error)
	SummaryFor(ctx context.Context, targetType enums.ReviewTargetType, targetID uuid.UUID) (Summary, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CompletedPurchaseFarmer(ctx context.Context, buyerID uuid.UUID, targetType enums.ReviewTargetType, targetID uuid.UUID) (uuid.UUID, bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) Exists(ctx context.Context, authorID uuid.UUID, targetType enums.ReviewTargetType, targetID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("author_id = ? AND target_type = ? AND target_id = ?", authorID, targetType, targetID).
		Count(&count).Error
	return count > 0, err
}

func targetScope(targetType enums.ReviewTargetType, targetID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("target_type = ? AND target_id = ?", targetType, targetID)
	}
}

func (r *repository) ListForTarget(ctx context.Context, targetType enums.ReviewTargetType, targetID uuid.UUID, page pagination.Page) ([]models.Review, int64, error) {
	page = page.Normalize()
	scope := targetScope(targetType, targetID)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Review{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC, id DESC").
		Scopes(page.Scope).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) SummaryFor(ctx context.Context, targetType enums.ReviewTargetType, targetID uuid.UUID) (Summary, error) {
	var row struct {
		Count   int64
		Average *float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COUNT(*) AS count, AVG(rating) AS average").
		Scopes(targetScope(targetType, targetID)).
		Scan(&row).Error
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Count: row.Count}
	if row.Average != nil {
		out.Average = *row.Average
	}
	return out, nil
}

func (r *repository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{}).Error
}

// CompletedPurchaseFarmer reports whether buyerID has a completed order
// covering the target and returns the farmer who fulfilled it.
func (r *repository) CompletedPurchaseFarmer(ctx context.Context, buyerID uuid.UUID, targetType enums.ReviewTargetType, targetID uuid.UUID) (uuid.UUID, bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.farmer_id").
		Where("orders.buyer_id = ? AND orders.status = ?", buyerID, enums.OrderStatusCompleted)
	switch targetType {
	case enums.ReviewTargetListing:
		query = query.
			Joins("JOIN order_line_items li ON li.order_id = orders.id").
			Where("li.listing_id = ?", targetID)
	case enums.ReviewTargetFarmer:
		query = query.Where("orders.farmer_id = ?", targetID)
	default:
		return uuid.Nil, false, nil
	}

	var order models.Order
	err := query.Limit(1).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return order.FarmerID, true, nil
}
