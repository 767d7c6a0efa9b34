package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/internal/checkout/helpers"
	"github.com/gebeya-market/gebeya-backend/internal/listings"
	"github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/checkout"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
)

// Currency is the only settlement currency of the marketplace.
const Currency = "ETB"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type listingLoader interface {
	WithTx(tx *gorm.DB) listings.Repository
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, actor auth.Actor, input CheckoutInput) (*Result, error)
}

// CheckoutInput is a buyer's cart plus delivery details.
type CheckoutInput struct {
	Items    []checkout.LineInput
	Delivery helpers.DeliveryInput
}

// Result lists the per-farmer orders a checkout produced.
type Result struct {
	CheckoutGroupID uuid.UUID         `json:"checkoutGroupId"`
	Orders          []orders.OrderDTO `json:"orders"`
}

type service struct {
	tx       txRunner
	listings listingLoader
	stock    stockReserver
	orders   orders.Repository
	payments orders.PaymentRecorder
	outbox   outboxPublisher
	metrics  *metrics.OrderMetrics
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	listingRepo listingLoader,
	stock stockReserver,
	ordersRepo orders.Repository,
	payments orders.PaymentRecorder,
	publisher outboxPublisher,
	m *metrics.OrderMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if listingRepo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       tx,
		listings: listingRepo,
		stock:    stock,
		orders:   ordersRepo,
		payments: payments,
		outbox:   publisher,
		metrics:  m,
	}, nil
}

// Execute validates the cart against live listings, splits it into one order
// per farmer and reserves stock, all in one transaction.
func (s *service) Execute(ctx context.Context, actor auth.Actor, input CheckoutInput) (*Result, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.RoleBuyer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can place orders")
	}
	lines, err := checkout.NormalizeLines(input.Items)
	if err != nil {
		return nil, err
	}
	delivery, err := helpers.ValidateDelivery(input.Delivery)
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	var created []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ListingID)
		}
		rows, err := s.listings.WithTx(tx).FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listings")
		}
		byID := make(map[uuid.UUID]models.Listing, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}

		checks := make([]checkout.AvailabilityInput, 0, len(lines))
		for _, line := range lines {
			listing, found := byID[line.ListingID]
			checks = append(checks, checkout.AvailabilityInput{
				ListingID:   line.ListingID,
				ListingName: listing.Name,
				Found:       found,
				Active:      listing.IsActive,
				Available:   listing.AvailableQuantity,
				Requested:   line.Quantity,
			})
		}
		if err := checkout.ValidateAvailability(checks); err != nil {
			return err
		}

		for _, line := range lines {
			if err := s.stock.Reserve(ctx, tx, line.ListingID, line.Quantity); err != nil {
				if errors.Is(err, listings.ErrInsufficientStock) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "stock changed during checkout").WithDetails(map[string]any{
						"listingId": line.ListingID,
					})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
		}

		refs := []payloads.OrderRef{}
		for _, group := range helpers.GroupLinesByFarmer(lines, byID) {
			order := &models.Order{
				CheckoutGroupID: groupID,
				BuyerID:         actor.UserID,
				FarmerID:        group.FarmerID,
				Status:          enums.OrderStatusPending,
				Currency:        Currency,
				Subtotal:        group.Subtotal,
				PaymentMethod:   delivery.PaymentMethod,
				DeliveryAddress: delivery.Address,
				DeliveryCity:    delivery.City,
				ContactPhone:    delivery.ContactPhone,
				Notes:           delivery.Notes,
				Items:           group.Items,
			}
			if err := ordersRepo.CreateOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			if err := s.payments.RecordForOrder(ctx, tx, order, enums.PaymentEventInitiated, actor.Role, actor.UserIDPtr()); err != nil {
				return err
			}
			refs = append(refs, payloads.OrderRef{OrderID: order.ID, FarmerID: order.FarmerID, Subtotal: order.Subtotal})
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutGroup,
			AggregateID:   groupID,
			Actor:         actor.Ref(),
			Data: payloads.OrderCreatedEvent{
				CheckoutGroupID: groupID,
				BuyerID:         actor.UserID,
				Currency:        Currency,
				Orders:          refs,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		created, err = ordersRepo.FindByCheckoutGroup(ctx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload orders")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddCreated(len(created))
	result := &Result{CheckoutGroupID: groupID, Orders: make([]orders.OrderDTO, 0, len(created))}
	for i := range created {
		result.Orders = append(result.Orders, orders.ToDTO(&created[i]))
	}
	return result, nil
}
