package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
)

const defaultInterval = time.Minute

// ServiceParams configure the cron service. JobTimeout bounds a single job;
// it defaults to the cycle interval so a stuck job cannot overlap the next
// cycle.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock. Only one replica does work in a given cycle.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{names: map[string]struct{}{}}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	jobTimeout := params.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = interval
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: jobTimeout,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns an error only when the lock could not be checked. Job
// failures are logged and counted; one failing job never skips the others.
func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "cron lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	var (
		failures error
		affected int64
	)
	jobs := s.registry.Jobs()
	ran := 0
	for _, job := range jobs {
		n, err := s.runJob(ctx, job)
		ran++
		affected += n
		failures = multierr.Append(failures, err)

		held, extErr := s.lock.Extend(ctx)
		if extErr != nil {
			failures = multierr.Append(failures, extErr)
		}
		if !held {
			s.metrics.IncLockLost()
			s.logg.Warn(s.logg.WithField(ctx, "skipped_jobs", len(jobs)-ran), "cron lock lost mid-cycle")
			break
		}
	}

	summary := s.logg.WithFields(ctx, map[string]any{
		"jobs":          ran,
		"failed":        len(multierr.Errors(failures)),
		"rows_affected": affected,
	})
	s.logg.Info(summary, "cron cycle complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) (int64, error) {
	name := job.Name()
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", name), s.jobTimeout)
	defer cancel()

	start := time.Now()
	affected, err := job.Run(jobCtx)
	elapsed := time.Since(start)

	s.metrics.ObserveRun(name, elapsed, affected, err)
	logCtx := s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms":   elapsed.Milliseconds(),
		"rows_affected": affected,
	})
	if err != nil {
		s.logg.Error(logCtx, "cron job failed", err)
		return affected, fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Debug(logCtx, "cron job completed")
	return affected, nil
}
