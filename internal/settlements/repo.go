package settlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// Repository persists settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, s *models.Settlement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, filter ListFilter, page pagination.Page) ([]models.Settlement, int64, error)
	Resolve(ctx context.Context, id uuid.UUID, to enums.SettlementStatus, updates map[string]any) (bool, error)
}

// ListFilter narrows settlement listings.
type ListFilter struct {
	FarmerID *uuid.UUID
	Status   *enums.SettlementStatus
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

func (r *repository) Create(ctx context.Context, s *models.Settlement) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByOrder returns nil when the order has no settlement.
func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (f ListFilter) scope(db *gorm.DB) *gorm.DB {
	if f.FarmerID != nil {
		db = db.Where("farmer_id = ?", *f.FarmerID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *repository) List(ctx context.Context, filter ListFilter, page pagination.Page) ([]models.Settlement, int64, error) {
	page = page.Normalize()
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Settlement{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Settlement
	err := r.db.WithContext(ctx).
		Scopes(filter.scope).
		Order("created_at DESC, id DESC").
		Scopes(page.Scope).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Resolve moves a pending settlement to a final status. False means it was
// no longer pending.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, to enums.SettlementStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ? AND status = ?", id, enums.SettlementPending).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
