package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Entry describes one ledger append.
type Entry struct {
	Order          *models.Order
	Status         enums.PaymentEventStatus
	ActorRole      enums.Role
	ActorID        *uuid.UUID
	SettlementID   *uuid.UUID
	PayoutMethodID *uuid.UUID
	Note           *string
}

// Recorder appends validated entries to the payment log. It always runs in
// the caller's transaction so the ledger moves with the order.
type Recorder struct {
	repo   Repository
	outbox outboxPublisher
}

func NewRecorder(repo Repository, outbox outboxPublisher) (*Recorder, error) {
	if repo == nil {
		return nil, errors.New("payments repository required")
	}
	if outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	return &Recorder{repo: repo, outbox: outbox}, nil
}

// RecordForOrder is the hook order transitions call.
func (r *Recorder) RecordForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, status enums.PaymentEventStatus, actorRole enums.Role, actorID *uuid.UUID) error {
	_, err := r.Record(ctx, tx, Entry{Order: order, Status: status, ActorRole: actorRole, ActorID: actorID})
	return err
}

// Record validates entry against the latest ledger status and appends it.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PaymentEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if entry.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !entry.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment status %q", entry.Status)
	}
	repo := r.repo.WithTx(tx)

	latest, err := repo.Latest(ctx, entry.Order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment ledger")
	}
	var from enums.PaymentEventStatus
	if latest != nil {
		from = latest.Status
	}
	if !CanAdvance(from, entry.Status) {
		return nil, ledgerConflict(from, entry.Status)
	}

	event := &models.PaymentEvent{
		OrderID:        entry.Order.ID,
		BuyerID:        entry.Order.BuyerID,
		FarmerID:       entry.Order.FarmerID,
		Status:         entry.Status,
		Amount:         entry.Order.Subtotal,
		Currency:       entry.Order.Currency,
		Method:         entry.Order.PaymentMethod,
		SettlementID:   entry.SettlementID,
		PayoutMethodID: entry.PayoutMethodID,
		ActorRole:      entry.ActorRole,
		ActorID:        entry.ActorID,
		Note:           entry.Note,
	}
	if err := repo.Append(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment event")
	}

	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   entry.Order.ID,
		Actor:         &outbox.ActorRef{UserID: entry.ActorID, Role: entry.ActorRole},
		Data: payloads.PaymentRecordedEvent{
			PaymentEventID: event.ID,
			OrderID:        event.OrderID,
			BuyerID:        event.BuyerID,
			FarmerID:       event.FarmerID,
			Status:         event.Status,
			Amount:         event.Amount,
			Currency:       event.Currency,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
	}
	return event, nil
}
