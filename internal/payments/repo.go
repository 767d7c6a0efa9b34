package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// Repository persists the append-only payment event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.PaymentEvent) error
	Latest(ctx context.Context, orderID uuid.UUID) (*models.PaymentEvent, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error)
	ListForOrders(ctx context.Context, orderIDs []uuid.UUID) ([]models.PaymentEvent, error)
	ListCapturedOrders(ctx context.Context, filter CapturedFilter, page pagination.Page) ([]models.Order, int64, error)
}

// CapturedFilter scopes the paid/received projection to one side of the order.
type CapturedFilter struct {
	BuyerID  *uuid.UUID
	FarmerID *uuid.UUID
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

func (r *repository) Append(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// Latest returns nil when the order has no ledger entries.
func (r *repository) Latest(ctx context.Context, orderID uuid.UUID) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error) {
	return r.ListForOrders(ctx, []uuid.UUID{orderID})
}

func (r *repository) ListForOrders(ctx context.Context, orderIDs []uuid.UUID) ([]models.PaymentEvent, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var events []models.PaymentEvent
	err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (f CapturedFilter) scope(db *gorm.DB) *gorm.DB {
	db = db.Where("EXISTS (SELECT 1 FROM payment_events pe WHERE pe.order_id = orders.id AND pe.status = ?)", enums.PaymentEventCaptured)
	if f.BuyerID != nil {
		db = db.Where("orders.buyer_id = ?", *f.BuyerID)
	}
	if f.FarmerID != nil {
		db = db.Where("orders.farmer_id = ?", *f.FarmerID)
	}
	return db
}

// ListCapturedOrders returns the orders whose ledger contains a capture.
func (r *repository) ListCapturedOrders(ctx context.Context, filter CapturedFilter, page pagination.Page) ([]models.Order, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := r.db.WithContext(ctx).
		Scopes(filter.scope).
		Order("orders.created_at DESC, orders.id DESC").
		Scopes(page.Scope).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
