package settlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/internal/payments"
	"github.com/gebeya-market/gebeya-backend/internal/payoutmethods"
	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

const uniqueOrderConstraint = "ux_settlements_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerWriter interface {
	Record(ctx context.Context, tx *gorm.DB, entry payments.Entry) (*models.PaymentEvent, error)
}

// Service moves captured funds to farmer payout methods.
type Service interface {
	Request(ctx context.Context, actor auth.Actor, input RequestInput) (*SettlementDTO, error)
	Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*SettlementDTO, error)
	Fail(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*SettlementDTO, error)
	Refund(ctx context.Context, actor auth.Actor, orderID uuid.UUID, note string) error
	List(ctx context.Context, actor auth.Actor, status *enums.SettlementStatus, page pagination.Page) (*SettlementList, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	orders  orders.Repository
	methods payoutmethods.Repository
	ledger  payments.Repository
	writer  ledgerWriter
	outbox  outboxPublisher
	now     func() time.Time
}

func NewService(
	repo Repository,
	tx txRunner,
	ordersRepo orders.Repository,
	methods payoutmethods.Repository,
	ledger payments.Repository,
	writer ledgerWriter,
	publisher outboxPublisher,
) (Service, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("settlements repository required")
	case tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case ordersRepo == nil:
		return nil, fmt.Errorf("orders repository required")
	case methods == nil:
		return nil, fmt.Errorf("payout methods repository required")
	case ledger == nil || writer == nil:
		return nil, fmt.Errorf("payment ledger required")
	case publisher == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		orders:  ordersRepo,
		methods: methods,
		ledger:  ledger,
		writer:  writer,
		outbox:  publisher,
		now:     time.Now,
	}, nil
}

// Request opens a pending settlement. The order's payment must be captured
// and the payout method must belong to the farmer and be verified.
func (s *service) Request(ctx context.Context, actor auth.Actor, input RequestInput) (*SettlementDTO, error) {
	if actor.Role != enums.RoleFarmer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can request settlements")
	}
	if input.OrderID == uuid.Nil || input.PayoutMethodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and payout method id required")
	}

	var created *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		if order.FarmerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		latest, err := s.ledger.WithTx(tx).Latest(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment ledger")
		}
		if latest == nil || latest.Status != enums.PaymentEventCaptured {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment for this order is not captured")
		}

		method, err := s.methods.WithTx(tx).FindByID(ctx, input.PayoutMethodID)
		if err != nil {
			return notFoundOr(err, "payout method not found", "load payout method")
		}
		if method.OwnerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payout method not found")
		}
		if !method.IsVerified {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout method is not verified")
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing settlement")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a settlement")
		}

		settlement := &models.Settlement{
			OrderID:        order.ID,
			FarmerID:       order.FarmerID,
			PayoutMethodID: method.ID,
			Amount:         order.Subtotal,
			Currency:       order.Currency,
			Status:         enums.SettlementPending,
		}
		if err := repo.Create(ctx, settlement); err != nil {
			if db.IsUniqueViolation(err, uniqueOrderConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a settlement")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement")
		}
		created = settlement

		return s.emit(ctx, tx, actor, enums.EventSettlementRequested, settlement.ID, payloads.SettlementRequestedEvent{
			SettlementID:   settlement.ID,
			OrderID:        settlement.OrderID,
			FarmerID:       settlement.FarmerID,
			PayoutMethodID: settlement.PayoutMethodID,
			Amount:         settlement.Amount,
			Currency:       settlement.Currency,
		})
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(created)
	return &dto, nil
}

func (s *service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*SettlementDTO, error) {
	return s.resolve(ctx, actor, id, enums.SettlementCompleted, "")
}

func (s *service) Fail(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*SettlementDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}
	return s.resolve(ctx, actor, id, enums.SettlementFailed, reason)
}

func (s *service) resolve(ctx context.Context, actor auth.Actor, id uuid.UUID, to enums.SettlementStatus, reason string) (*SettlementDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	ledgerStatus := enums.PaymentEventSettled
	if to == enums.SettlementFailed {
		ledgerStatus = enums.PaymentEventFailed
	}

	var result *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		settlement, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "settlement not found", "load settlement")
		}
		if settlement.Status == to {
			result = settlement
			return nil
		}

		now := s.now().UTC()
		updates := map[string]any{"resolved_at": now}
		if reason != "" {
			updates["failure_reason"] = reason
		}
		applied, err := repo.Resolve(ctx, settlement.ID, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve settlement")
		}
		if !applied {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "settlement is already %s", settlement.Status)
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, settlement.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		var note *string
		if reason != "" {
			note = &reason
		}
		if _, err := s.writer.Record(ctx, tx, payments.Entry{
			Order:          order,
			Status:         ledgerStatus,
			ActorRole:      actor.Role,
			ActorID:        actor.UserIDPtr(),
			SettlementID:   &settlement.ID,
			PayoutMethodID: &settlement.PayoutMethodID,
			Note:           note,
		}); err != nil {
			return err
		}

		if err := s.emit(ctx, tx, actor, enums.EventSettlementResolved, settlement.ID, payloads.SettlementResolvedEvent{
			SettlementID: settlement.ID,
			OrderID:      settlement.OrderID,
			FarmerID:     settlement.FarmerID,
			Status:       to,
			Reason:       reason,
		}); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, settlement.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload settlement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(result)
	return &dto, nil
}

// Refund returns captured funds to the buyer. It is refused while a
// settlement for the order is in flight.
func (s *service) Refund(ctx context.Context, actor auth.Actor, orderID uuid.UUID, note string) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		existing, err := s.repo.WithTx(tx).FindByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settlement")
		}
		if existing != nil && existing.Status == enums.SettlementPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "order has a pending settlement")
		}
		var notePtr *string
		if trimmed := strings.TrimSpace(note); trimmed != "" {
			notePtr = &trimmed
		}
		_, err = s.writer.Record(ctx, tx, payments.Entry{
			Order:     order,
			Status:    enums.PaymentEventRefunded,
			ActorRole: actor.Role,
			ActorID:   actor.UserIDPtr(),
			Note:      notePtr,
		})
		return err
	})
}

func (s *service) List(ctx context.Context, actor auth.Actor, status *enums.SettlementStatus, page pagination.Page) (*SettlementList, error) {
	filter := ListFilter{Status: status}
	switch {
	case actor.IsAdmin():
	case actor.Role == enums.RoleFarmer:
		id := actor.UserID
		filter.FarmerID = &id
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers have settlements")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlements")
	}
	out := make([]SettlementDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return &SettlementList{Settlements: out, Meta: pagination.MetaFor(page, total)}, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor auth.Actor, eventType enums.OutboxEventType, id uuid.UUID, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   id,
		Actor:         actor.Ref(),
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement event")
	}
	return nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
