package listings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
)

// ErrInsufficientStock is returned when a reservation would drive the
// available quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository reads listings and adjusts their stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error)
	Create(ctx context.Context, listing *models.Listing) error
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error
	Reserve(ctx context.Context, id uuid.UUID, qty int) error
	Release(ctx context.Context, id uuid.UUID, qty int) error
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		Update("price_per_unit", price).Error
}

// Reserve decrements available stock only when enough remains, so two
// concurrent checkouts can never oversell.
func (r *repository) Reserve(ctx context.Context, id uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND is_active = ? AND available_quantity >= ?", id, true, qty).
		Update("available_quantity", gorm.Expr("available_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *repository) Release(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		Update("available_quantity", gorm.Expr("available_quantity + ?", qty)).Error
}
