package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

type orderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service serves read views over the payment log.
type Service interface {
	GetPaymentsFor(ctx context.Context, actor auth.Actor, perspective enums.Role, page pagination.Page) (*PaymentList, error)
	EventsForOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) ([]PaymentEventDTO, error)
}

type service struct {
	repo   Repository
	orders orderLookup
}

func NewService(repo Repository, orders orderLookup) (Service, error) {
	if repo == nil {
		return nil, errors.New("payments repository required")
	}
	if orders == nil {
		return nil, errors.New("order lookup required")
	}
	return &service{repo: repo, orders: orders}, nil
}

// GetPaymentsFor projects captured orders into the buyer's "paid" or the
// farmer's "received" view. Amount is always the frozen order subtotal.
func (s *service) GetPaymentsFor(ctx context.Context, actor auth.Actor, perspective enums.Role, page pagination.Page) (*PaymentList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	if perspective == "" {
		perspective = actor.Role
	}
	if !actor.Privileged() && perspective != actor.Role {
		return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "cannot list payments as %s", perspective)
	}

	id := actor.UserID
	var (
		filter CapturedFilter
		label  string
	)
	switch perspective {
	case enums.RoleBuyer:
		filter.BuyerID, label = &id, StatusPaid
	case enums.RoleFarmer:
		filter.FarmerID, label = &id, StatusReceived
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer or farmer")
	}

	orders, total, err := s.repo.ListCapturedOrders(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list captured orders")
	}
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	events, err := s.repo.ListForOrders(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment events")
	}
	latest, captured := summarize(events)

	out := make([]PaymentDTO, 0, len(orders))
	for _, o := range orders {
		counterparty := o.FarmerID
		if perspective == enums.RoleFarmer {
			counterparty = o.BuyerID
		}
		out = append(out, PaymentDTO{
			OrderID:         o.ID,
			CheckoutGroupID: o.CheckoutGroupID,
			CounterpartyID:  counterparty,
			Amount:          o.Subtotal,
			Currency:        o.Currency,
			Method:          o.PaymentMethod,
			Status:          label,
			LedgerStatus:    latest[o.ID].Status,
			CapturedAt:      captured[o.ID],
		})
	}
	return &PaymentList{Payments: out, Meta: pagination.MetaFor(page, total)}, nil
}

func (s *service) EventsForOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) ([]PaymentEventDTO, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Privileged() && order.BuyerID != actor.UserID && order.FarmerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	events, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment events")
	}
	out := make([]PaymentEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	return out, nil
}

// summarize folds an ordered event list into the latest entry and capture
// time per order.
func summarize(events []models.PaymentEvent) (map[uuid.UUID]models.PaymentEvent, map[uuid.UUID]time.Time) {
	latest := make(map[uuid.UUID]models.PaymentEvent, len(events))
	captured := make(map[uuid.UUID]time.Time)
	for _, e := range events {
		latest[e.OrderID] = e
		if e.Status == enums.PaymentEventCaptured {
			captured[e.OrderID] = e.CreatedAt
		}
	}
	return latest, captured
}
