package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCheckoutGroup(ctx context.Context, checkoutGroupID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, filter ListFilter, page pagination.Page) ([]models.Order, int64, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	InsertStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error
	ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ListFilter narrows an order listing. A nil BuyerID and FarmerID lists every
// order and is only built for admins.
type ListFilter struct {
	BuyerID  *uuid.UUID
	FarmerID *uuid.UUID
	Status   *enums.OrderStatus
}

// PaymentRecorder appends a ledger entry in the caller's transaction.
type PaymentRecorder interface {
	RecordForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, status enums.PaymentEventStatus, actorRole enums.Role, actorID *uuid.UUID) error
}

// StockReleaser returns reserved stock when an order is cancelled.
type StockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

// NameResolver looks up counterparty display names for list views.
type NameResolver interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}
