package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

// MaxReasonLength bounds cancel and transition reasons.
const MaxReasonLength = 500

// ExpiryReason is recorded on orders cancelled by the pending-order sweep.
const ExpiryReason = "not confirmed by the farmer in time"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order reads and lifecycle transitions.
type Service interface {
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, actor auth.Actor, query ListQuery) (*OrderList, error)
	Transition(ctx context.Context, actor auth.Actor, input TransitionInput) (*OrderDTO, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason *string) (*OrderDTO, error)
	History(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]StatusEventDTO, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	payments PaymentRecorder
	stock    StockReleaser
	names    NameResolver
	metrics  *metrics.OrderMetrics
	now      func() time.Time
}

// Option customizes optional service collaborators.
type Option func(*service)

func WithNameResolver(names NameResolver) Option {
	return func(s *service) { s.names = names }
}

func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, payments PaymentRecorder, stock StockReleaser, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	s := &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		payments: payments,
		stock:    stock,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error) {
	order, err := loadVisible(ctx, s.repo, id, actor)
	if err != nil {
		return nil, err
	}
	dtos := []OrderDTO{ToDTO(order)}
	if err := s.attachNames(ctx, dtos); err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, query ListQuery) (*OrderList, error) {
	if actor.Role == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	perspective := query.Perspective
	if perspective == "" {
		perspective = actor.Role
	}
	filter := ListFilter{Status: query.Status}
	if !actor.Privileged() {
		if perspective != actor.Role {
			return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "cannot list orders as %s", perspective)
		}
		id := actor.UserID
		switch perspective {
		case enums.RoleBuyer:
			filter.BuyerID = &id
		case enums.RoleFarmer:
			filter.FarmerID = &id
		default:
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
		}
	}

	rows, total, err := s.repo.List(ctx, filter, query.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToDTO(&rows[i]))
	}
	if err := s.attachNames(ctx, out); err != nil {
		return nil, err
	}
	return &OrderList{Orders: out, Meta: pagination.MetaFor(query.Page, total)}, nil
}

func (s *service) Transition(ctx context.Context, actor auth.Actor, input TransitionInput) (*OrderDTO, error) {
	order, outcome, err := s.transition(ctx, actor, input)
	s.metrics.ObserveTransition(string(input.Status), string(actor.Role), outcome)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason *string) (*OrderDTO, error) {
	return s.Transition(ctx, actor, TransitionInput{OrderID: id, Status: enums.OrderStatusCancelled, Reason: reason})
}

func (s *service) History(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]StatusEventDTO, error) {
	if _, err := loadVisible(ctx, s.repo, id, actor); err != nil {
		return nil, err
	}
	events, err := s.repo.ListStatusEvents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	out := make([]StatusEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toStatusEventDTO(e))
	}
	return out, nil
}

// ExpirePending cancels pending orders created before cutoff as the system
// actor. Orders that moved concurrently are skipped.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending orders")
	}
	reason := ExpiryReason
	actor := auth.SystemActor()
	var (
		expired int
		errs    error
	)
	for _, order := range stale {
		_, outcome, err := s.transition(ctx, actor, TransitionInput{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Reason:  &reason,
		})
		s.metrics.ObserveTransition(string(enums.OrderStatusCancelled), string(actor.Role), outcome)
		switch {
		case err == nil && outcome == metrics.OutcomeApplied:
			expired++
		case err == nil, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
		}
	}
	return expired, errs
}

func (s *service) transition(ctx context.Context, actor auth.Actor, input TransitionInput) (*models.Order, string, error) {
	if input.OrderID == uuid.Nil {
		return nil, metrics.OutcomeRejected, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, metrics.OutcomeRejected, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown status %q", input.Status)
	}
	if actor.Role == "" {
		return nil, metrics.OutcomeRejected, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	reason, err := normalizeReason(input.Reason)
	if err != nil {
		return nil, metrics.OutcomeRejected, err
	}

	var (
		result  *models.Order
		outcome = metrics.OutcomeApplied
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadVisible(ctx, repo, input.OrderID, actor)
		if err != nil {
			return err
		}
		if order.Status == input.Status {
			if err := AuthorizeRepeat(order, actor); err != nil {
				return err
			}
			result, outcome = order, metrics.OutcomeNoop
			return nil
		}
		if !CanTransition(order.Status, input.Status) {
			return invalidTransition(order.Status, input.Status)
		}
		if err := Authorize(order, input.Status, actor); err != nil {
			return err
		}

		updates := statusUpdates(input.Status, s.now().UTC(), actor.Role, reason)
		applied, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, input.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !applied {
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			if current.Status == input.Status {
				result, outcome = current, metrics.OutcomeNoop
				return nil
			}
			return invalidTransition(current.Status, input.Status)
		}

		from := order.Status
		if err := repo.InsertStatusEvent(ctx, &models.OrderStatusEvent{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   input.Status,
			ActorRole:  actor.Role,
			ActorID:    actor.UserIDPtr(),
			Reason:     reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record status history")
		}

		if ledger, ok := ledgerStatusFor(input.Status); ok {
			if err := s.payments.RecordForOrder(ctx, tx, order, ledger, actor.Role, actor.UserIDPtr()); err != nil {
				return err
			}
		}
		if input.Status == enums.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := s.stock.Release(ctx, tx, item.ListingID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
				}
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.Ref(),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:         order.ID,
				CheckoutGroupID: order.CheckoutGroupID,
				BuyerID:         order.BuyerID,
				FarmerID:        order.FarmerID,
				From:            from,
				To:              input.Status,
				ActorRole:       actor.Role,
				Reason:          derefString(reason),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}

		result, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, metrics.OutcomeRejected, err
	}
	return result, outcome, nil
}

func (s *service) attachNames(ctx context.Context, dtos []OrderDTO) error {
	if s.names == nil || len(dtos) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(dtos)*2)
	for _, d := range dtos {
		ids = append(ids, d.BuyerID, d.FarmerID)
	}
	names, err := s.names.DisplayNames(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve display names")
	}
	for i := range dtos {
		dtos[i].BuyerName = names[dtos[i].BuyerID]
		dtos[i].FarmerName = names[dtos[i].FarmerID]
	}
	return nil
}

// loadVisible hides orders the actor is not a party to behind NOT_FOUND.
func loadVisible(ctx context.Context, repo Repository, id uuid.UUID, actor auth.Actor) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !CanView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func statusUpdates(to enums.OrderStatus, now time.Time, role enums.Role, reason *string) map[string]any {
	updates := map[string]any{}
	switch to {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = now
	case enums.OrderStatusShipped:
		updates["shipped_at"] = now
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
		updates["cancelled_by"] = role
		updates["cancel_reason"] = reason
	}
	return updates
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move order from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to, "allowed": AllowedTargets(from)})
}

func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxReasonLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "reason must be at most %d characters", MaxReasonLength)
	}
	return &trimmed, nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
