package payoutmethods

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// Repository persists payout methods. Soft-deleted rows are invisible to
// every read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, method *models.PayoutMethod) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutMethod, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.PayoutMethod, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HasPendingSettlement(ctx context.Context, id uuid.UUID) (bool, error)
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

func (r *repository) Create(ctx context.Context, method *models.PayoutMethod) error {
	return r.db.WithContext(ctx).Create(method).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutMethod, error) {
	var method models.PayoutMethod
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&method).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.PayoutMethod, error) {
	var methods []models.PayoutMethod
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&methods).Error
	return methods, err
}

func (r *repository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutMethod{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_verified": true, "verified_at": at}).Error
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PayoutMethod{}).Error
}

func (r *repository) HasPendingSettlement(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("payout_method_id = ? AND status = ?", id, enums.SettlementPending).
		Count(&count).Error
	return count > 0, err
}
