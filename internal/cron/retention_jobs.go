package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

const (
	defaultOutboxRetention       = 7 * 24 * time.Hour
	defaultNotificationRetention = 30 * 24 * time.Hour
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationsCleanupRepo interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// retentionJob deletes rows older than a cutoff through a single repository call.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	retention time.Duration
	prune     func(ctx context.Context, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return deleted, nil
}

// OutboxRetentionJobParams configure the outbox retention job.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	Retention  time.Duration
}

// NewOutboxRetentionJob prunes outbox rows that were published before the
// retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &retentionJob{
		name:      "outbox-retention",
		logg:      params.Logger,
		retention: retention,
		prune:     params.Repository.DeletePublishedBefore,
		now:       time.Now,
	}, nil
}

// NotificationCleanupJobParams configure the notification cleanup job.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationsCleanupRepo
	Retention  time.Duration
}

// NewNotificationCleanupJob prunes notifications read before the retention
// window. Unread rows are kept regardless of age.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return &retentionJob{
		name:      "notification-cleanup",
		logg:      params.Logger,
		retention: retention,
		prune:     params.Repository.DeleteReadBefore,
		now:       time.Now,
	}, nil
}
