package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/registry"
	pkgpubsub "github.com/gebeya-market/gebeya-backend/pkg/pubsub"
)

type outcome int

const (
	published outcome = iota
	parked
	// deferred rows failed transiently; the rest of the batch waits behind
	// them so an aggregate's events never overtake each other.
	deferred
)

// processBatch reports whether the batch ran to completion, meaning more
// rows may be waiting.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(ctx, s.batchSize)
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}
	for _, event := range events {
		result, err := s.dispatch(ctx, event)
		if err != nil {
			return true, err
		}
		if result == deferred {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return parked, s.park(ctx, event, reasonFor(err, enums.DLQReasonDecode), err, s.fields(event, nil))
	}
	fields := s.fields(event, resolved)

	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublished(ctx, event.ID); err != nil {
			return published, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return published, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return parked, s.park(ctx, event, reasonFor(pubErr, enums.DLQReasonNoTopic), pubErr, fields)
	}

	s.metrics.IncFailed(string(event.EventType))
	attempts, err := s.repo.MarkFailed(ctx, event.ID, pubErr)
	if err != nil {
		return deferred, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	fields["attempt_count"] = attempts
	if attempts >= s.maxAttempts {
		event.AttemptCount = attempts
		gaveUp := fmt.Errorf("gave up after %d attempts: %w", attempts, pubErr)
		return parked, s.park(ctx, event, enums.DLQReasonMaxAttempts, gaveUp, fields)
	}

	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed; will retry")
	return deferred, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(enums.DLQReasonNoTopic, fmt.Errorf("no publisher for topic %q", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			pkgpubsub.AttrEventID:       resolved.Envelope.EventID,
			pkgpubsub.AttrEventType:     string(event.EventType),
			pkgpubsub.AttrAggregateType: string(event.AggregateType),
			pkgpubsub.AttrAggregateID:   event.AggregateID.String(),
			pkgpubsub.AttrVersion:       strconv.Itoa(resolved.Envelope.Version),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(enums.DLQReasonNoTopic, fmt.Errorf("publisher for topic %q returned no result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

// park moves the row to outbox_dlq and deletes it from outbox_events in one
// transaction.
func (s *Service) park(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event parked in dlq")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.repo.DeleteTx(tx, event.ID); err != nil {
			return fmt.Errorf("delete outbox row %s: %w", event.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncDLQ(string(reason))
	return nil
}

func reasonFor(err error, fallback enums.OutboxDLQReason) enums.OutboxDLQReason {
	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) && nonRetryable.Reason != "" {
		return nonRetryable.Reason
	}
	return fallback
}

func (s *Service) fields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		if resolved.Envelope.EventID != "" {
			fields["event_id"] = resolved.Envelope.EventID
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
