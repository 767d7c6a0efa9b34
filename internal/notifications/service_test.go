package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/dbtest"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

type memoryCounterStore struct {
	mu        sync.Mutex
	values    map[string]string
	published map[string][]string
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{values: map[string]string{}, published: map[string][]string{}}
}

func (m *memoryCounterStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCounterStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryCounterStore) Publish(_ context.Context, channel string, message any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[channel] = append(m.published[channel], message.(string))
	return nil
}

func (m *memoryCounterStore) CounterKey(name string) string {
	return "gebeya:counter:" + name
}

func (m *memoryCounterStore) NotificationChannel(userID string) string {
	return "gebeya:notify:" + userID
}

// lastUnread decodes the most recent message published for userID.
func (m *memoryCounterStore) lastUnread(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.published[m.NotificationChannel(userID.String())]
	require.NotEmpty(t, msgs)
	var out UnreadMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[len(msgs)-1]), &out))
	return out.Unread
}

func openNotifications(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t, &models.Notification{})
}

func seedNotifications(t *testing.T, conn *gorm.DB, userID uuid.UUID, n int) []models.Notification {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]models.Notification, 0, n)
	for i := 0; i < n; i++ {
		row := models.Notification{
			UserID:    userID,
			Type:      enums.NotificationOrderStatus,
			Title:     "Order updated",
			TitleAm:   "ትዕዛዝ ተዘምኗል",
			Message:   "m",
			MessageAm: "m",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&row).Error)
		out = append(out, row)
	}
	return out
}

func TestListPagesWithCursor(t *testing.T) {
	ctx := context.Background()
	conn := openNotifications(t)
	user := uuid.New()
	seeded := seedNotifications(t, conn, user, 5)
	seedNotifications(t, conn, uuid.New(), 2)

	svc, err := NewService(NewRepository(conn), nil)
	require.NoError(t, err)

	first, err := svc.List(ctx, ListParams{UserID: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, seeded[4].ID, first.Items[0].ID)
	assert.Equal(t, seeded[3].ID, first.Items[1].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, ListParams{UserID: user, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, seeded[2].ID, second.Items[0].ID)

	third, err := svc.List(ctx, ListParams{UserID: user, Limit: 2, Cursor: second.Cursor})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Equal(t, seeded[0].ID, third.Items[0].ID)
	assert.Empty(t, third.Cursor)

	_, err = svc.List(ctx, ListParams{UserID: user, Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkReadRefreshesCounter(t *testing.T) {
	ctx := context.Background()
	conn := openNotifications(t)
	user := uuid.New()
	seeded := seedNotifications(t, conn, user, 3)

	store := newMemoryCounterStore()
	svc, err := NewService(NewRepository(conn), NewCounter(store, logger.Nop()))
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, svc.MarkRead(ctx, user, seeded[0].ID))
	assert.EqualValues(t, 2, store.lastUnread(t, user))

	// cached value is served once present
	n, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// marking again is a no-op
	require.NoError(t, svc.MarkRead(ctx, user, seeded[0].ID))

	err = svc.MarkRead(ctx, uuid.New(), seeded[1].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	count, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.EqualValues(t, 0, store.lastUnread(t, user))

	unread, err := svc.List(ctx, ListParams{UserID: user, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

func TestDeleteReadBefore(t *testing.T) {
	ctx := context.Background()
	conn := openNotifications(t)
	user := uuid.New()
	seeded := seedNotifications(t, conn, user, 2)
	repo := NewRepository(conn)

	old := time.Now().Add(-48 * time.Hour)
	_, err := repo.MarkRead(ctx, user, seeded[0].ID, old)
	require.NoError(t, err)

	deleted, err := repo.DeleteReadBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	unread, err := repo.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}
