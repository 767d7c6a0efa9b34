package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

const (
	defaultPendingTTL = 72 * time.Hour
	expiryBatchSize   = 100
	maxExpiryBatches  = 50
)

type pendingOrderExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PendingOrderExpiryJobParams configure the pending order expiry job.
type PendingOrderExpiryJobParams struct {
	Logger  *logger.Logger
	Orders  pendingOrderExpirer
	TTL     time.Duration
	BatchSz int
}

// NewPendingOrderExpiryJob builds the job that cancels orders left pending
// longer than TTL. Cancellation goes through the order state machine as the
// system actor, so stock and ledger follow the usual cancel path.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSz
	if batch <= 0 {
		batch = expiryBatchSize
	}
	return &pendingOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg   *logger.Logger
	orders pendingOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return "pending-order-expiry" }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	var total int64
	for i := 0; i < maxExpiryBatches; i++ {
		expired, err := j.orders.ExpirePending(ctx, cutoff, j.batch)
		total += int64(expired)
		if err != nil {
			return total, fmt.Errorf("expire pending orders: %w", err)
		}
		// a short batch means nothing older is left
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": total,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return total, nil
}
