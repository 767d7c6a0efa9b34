package notifications

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

const unreadCounterTTL = 24 * time.Hour

type counterStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message any) error
	CounterKey(name string) string
	NotificationChannel(userID string) string
}

// UnreadMessage is what subscribers receive on a user's channel.
type UnreadMessage struct {
	Unread int64 `json:"unread"`
}

// Counter caches unread counts in redis and fans changes out over pub/sub.
// The database stays authoritative; every write is the latest count.
type Counter struct {
	store counterStore
	logg  *logger.Logger
}

func NewCounter(store counterStore, logg *logger.Logger) *Counter {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Counter{store: store, logg: logg}
}

func (c *Counter) key(userID uuid.UUID) string {
	return c.store.CounterKey("unread:" + userID.String())
}

// Cached returns the cached unread count, if any.
func (c *Counter) Cached(ctx context.Context, userID uuid.UUID) (int64, bool) {
	if c == nil || c.store == nil {
		return 0, false
	}
	raw, err := c.store.Get(ctx, c.key(userID))
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Publish stores the count and pushes it to live subscribers. Failures are
// logged and dropped.
func (c *Counter) Publish(ctx context.Context, userID uuid.UUID, unread int64) {
	if c == nil || c.store == nil {
		return
	}
	logCtx := c.logg.WithField(ctx, "user_id", userID.String())
	if err := c.store.Set(ctx, c.key(userID), strconv.FormatInt(unread, 10), unreadCounterTTL); err != nil {
		c.logg.Error(logCtx, "failed to cache unread count", err)
	}
	body, err := json.Marshal(UnreadMessage{Unread: unread})
	if err != nil {
		return
	}
	if err := c.store.Publish(ctx, c.store.NotificationChannel(userID.String()), string(body)); err != nil {
		c.logg.Error(logCtx, "failed to publish unread count", err)
	}
}
