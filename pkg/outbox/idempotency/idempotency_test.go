package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

type memStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "gebeya:idempotency:" + scope + ":" + id
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestClaimLifecycle(t *testing.T) {
	store := newMemStore()
	guard, err := NewGuard(store, time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()
	key := "gebeya:idempotency:evt:order-notifications:" + eventID.String()

	state, err := guard.Claim(ctx, "order-notifications", eventID)
	if err != nil || state != Acquired {
		t.Fatalf("first claim: state=%v err=%v", state, err)
	}
	if store.ttls[key] != time.Minute {
		t.Fatalf("claim ttl = %v", store.ttls[key])
	}

	if state, _ := guard.Claim(ctx, "order-notifications", eventID); state != InFlight {
		t.Fatalf("second claim while held: %v", state)
	}

	if err := guard.Complete(ctx, "order-notifications", eventID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if store.ttls[key] != 24*time.Hour {
		t.Fatalf("done ttl = %v", store.ttls[key])
	}
	if state, _ := guard.Claim(ctx, "order-notifications", eventID); state != Done {
		t.Fatalf("claim after completion: %v", state)
	}

	if state, _ := guard.Claim(ctx, "payout-notifications", eventID); state != Acquired {
		t.Fatalf("other consumers keep their own markers: %v", state)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	guard, _ := NewGuard(newMemStore(), 0, time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	if state, _ := guard.Claim(ctx, "c", eventID); state != Acquired {
		t.Fatalf("expected acquired")
	}
	if err := guard.Release(ctx, "c", eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if state, _ := guard.Claim(ctx, "c", eventID); state != Acquired {
		t.Fatalf("expected claim after release, got %v", state)
	}
}

func TestClaimPropagatesStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("boom")
	guard, _ := NewGuard(store, time.Minute, time.Hour)

	if _, err := guard.Claim(context.Background(), "c", uuid.New()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestGuardValidatesInput(t *testing.T) {
	if _, err := NewGuard(nil, time.Minute, time.Hour); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewGuard(newMemStore(), time.Minute, -time.Second); err == nil {
		t.Fatalf("expected error for negative ttl")
	}

	guard, _ := NewGuard(newMemStore(), time.Minute, time.Hour)
	if _, err := guard.Claim(context.Background(), "", uuid.New()); err == nil {
		t.Fatalf("expected error for empty consumer")
	}
	if _, err := guard.Claim(context.Background(), "c", uuid.Nil); err == nil {
		t.Fatalf("expected error for nil event id")
	}
}
