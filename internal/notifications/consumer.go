package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/idempotency"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/registry"
	pkgpubsub "github.com/gebeya-market/gebeya-backend/pkg/pubsub"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type processedGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Consumer turns published domain events into per-user notifications.
type Consumer struct {
	name         string
	repo         Repository
	tx           txRunner
	subscription receiver
	idempotency  processedGuard
	decoders     *registry.DecoderRegistry
	counter      *Counter
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer. name scopes the idempotency
// keys, so each subscription gets its own.
func NewConsumer(name string, repo Repository, tx txRunner, subscription receiver, guard processedGuard, counter *Counter, logg *logger.Logger) (*Consumer, error) {
	if name == "" {
		return nil, fmt.Errorf("consumer name required")
	}
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		name:         name,
		repo:         repo,
		tx:           tx,
		subscription: subscription,
		idempotency:  guard,
		decoders:     registry.NewConsumerDecoders(),
		counter:      counter,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes[pkgpubsub.AttrEventType])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if eventType == "" {
		eventType = enums.OutboxEventType(envelope.EventType)
	}

	eventID := envelope.ParsedEventID()
	if eventID == uuid.Nil {
		c.logg.Error(logCtx, "invalid event id", errors.New(envelope.EventID))
		return processResult{ack: true}
	}

	version := envelope.Version
	if version == 0 {
		version = 1
	}
	payload, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Warn(logCtx, "skipping undecodable event")
		return processResult{ack: true}
	}
	drafts := draftsFor(payload)
	if len(drafts) == 0 {
		return processResult{ack: true}
	}

	state, err := c.idempotency.Claim(ctx, c.name, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Done:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case idempotency.InFlight:
		c.logg.Debug(logCtx, "event claimed by another worker")
		return processResult{nack: true}
	}

	notified, err := c.store(ctx, eventID, drafts)
	if err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if relErr := c.idempotency.Release(ctx, c.name, eventID); relErr != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", relErr.Error()), "idempotency release failed")
		}
		return processResult{nack: true}
	}
	if err := c.idempotency.Complete(ctx, c.name, eventID); err != nil {
		// Rows are committed; a lost marker only risks a duplicate notification
		// once the claim expires.
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "idempotency complete failed")
	}

	for _, userID := range notified {
		c.refresh(logCtx, userID)
	}
	return processResult{ack: true}
}

// store writes every draft in one transaction and returns the users that
// received a new row.
func (c *Consumer) store(ctx context.Context, eventID uuid.UUID, drafts []draft) ([]uuid.UUID, error) {
	var notified []uuid.UUID
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		for _, d := range drafts {
			n := &models.Notification{
				UserID:    d.UserID,
				Type:      d.Type,
				Title:     d.Title,
				TitleAm:   d.TitleAm,
				Message:   d.Message,
				MessageAm: d.MessageAm,
				OrderID:   d.OrderID,
				EventID:   &eventID,
			}
			if d.Link != "" {
				link := d.Link
				n.Link = &link
			}
			created, err := repo.Create(ctx, n)
			if err != nil {
				return err
			}
			if created {
				notified = append(notified, d.UserID)
			}
		}
		return nil
	})
	return notified, err
}

func (c *Consumer) refresh(ctx context.Context, userID uuid.UUID) {
	if c.counter == nil {
		return
	}
	n, err := c.repo.CountUnread(ctx, userID)
	if err != nil {
		c.logg.Error(ctx, "failed to count unread notifications", err)
		return
	}
	c.counter.Publish(ctx, userID, n)
}
