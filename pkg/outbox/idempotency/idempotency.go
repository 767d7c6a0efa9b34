// Package idempotency lets event consumers process each outbox event at
// most once, even though Pub/Sub delivers at least once.
//
// A consumer first claims an event. The claim is short lived so a worker
// that dies mid-handler frees the event for redelivery; completing the
// event replaces the claim with a long lived "done" marker.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

// State is the outcome of a claim attempt.
type State int

const (
	// Acquired means the caller owns the event and must Complete or Release it.
	Acquired State = iota
	// InFlight means another worker holds an unexpired claim.
	InFlight
	// Done means the event was already handled.
	Done
)

const (
	markerClaimed = "claimed"
	markerDone    = "done"

	defaultClaimTTL = 5 * time.Minute
)

// Store is the subset of the redis client the guard needs.
type Store interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Guard struct {
	store    Store
	claimTTL time.Duration
	doneTTL  time.Duration
}

// NewGuard remembers completed events for doneTTL. claimTTL bounds how long
// a single handler may hold an event; zero selects five minutes.
func NewGuard(store Store, claimTTL, doneTTL time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if doneTTL < 0 || claimTTL < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if claimTTL == 0 {
		claimTTL = defaultClaimTTL
	}
	return &Guard{store: store, claimTTL: claimTTL, doneTTL: doneTTL}, nil
}

func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	ok, err := g.store.SetNX(ctx, key, markerClaimed, g.claimTTL)
	if err != nil {
		return InFlight, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Acquired, nil
	}
	marker, err := g.store.Get(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return InFlight, fmt.Errorf("read claim %s: %w", key, err)
	}
	if marker == markerDone {
		return Done, nil
	}
	// Either another worker holds the claim or it expired between SETNX and
	// GET; both resolve on redelivery.
	return InFlight, nil
}

// Complete marks an acquired event as handled.
func (g *Guard) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markerDone, g.doneTTL)
}

// Release drops a claim after a failed handler so the next delivery can
// retry immediately.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
