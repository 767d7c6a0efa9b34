package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

const (
	maxErrorLen     = 1024
	defaultDLQLimit = 50
)

// ErrNotParked is returned when a requeue names an event that is not in the
// dead-letter table.
var ErrNotParked = errors.New("event is not parked")

// DLQFilter narrows a dead-letter listing. A zero Reason matches every row.
type DLQFilter struct {
	Reason enums.OutboxDLQReason
	Limit  int
}

// DLQRepository stores events the publisher gave up on so an operator can
// inspect them and push them back through the outbox.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx parks entry inside tx. Long error messages are cut to keep rows
// bounded.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		cut := truncateError(*entry.ErrorMessage)
		entry.ErrorMessage = &cut
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil, nil when the event was never parked.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

// List returns parked events, newest failure first.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDLQLimit
	}
	query := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if filter.Reason != "" {
		query = query.Where("error_reason = ?", filter.Reason)
	}
	var rows []models.OutboxDLQ
	return rows, query.Find(&rows).Error
}

// Requeue moves a parked event back into the outbox under its original id
// with a fresh attempt counter. The copy and the delete share one
// transaction so the event is never in both tables or neither.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	var event models.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parked models.OutboxDLQ
		if err := tx.Where("event_id = ?", eventID).Take(&parked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotParked
			}
			return err
		}
		event = models.OutboxEvent{
			ID:            parked.EventID,
			EventType:     parked.EventType,
			AggregateType: parked.AggregateType,
			AggregateID:   parked.AggregateID,
			Payload:       parked.Payload,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("reinsert outbox event: %w", err)
		}
		return tx.Where("id = ?", parked.ID).Delete(&models.OutboxDLQ{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func truncateError(message string) string {
	if len(message) <= maxErrorLen {
		return message
	}
	return message[:maxErrorLen]
}
