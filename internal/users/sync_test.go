package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

type countingUpserter struct {
	calls int
}

func (c *countingUpserter) Upsert(context.Context, Profile) error {
	c.calls++
	return nil
}

type memoryGate struct {
	keys map[string]struct{}
}

func (g *memoryGate) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if g.keys == nil {
		g.keys = map[string]struct{}{}
	}
	if _, ok := g.keys[key]; ok {
		return false, nil
	}
	g.keys[key] = struct{}{}
	return true, nil
}

func (g *memoryGate) CounterKey(name string) string { return "test:" + name }

func TestSyncerThrottlesPerUser(t *testing.T) {
	repo := &countingUpserter{}
	syncer, err := NewSyncer(repo, &memoryGate{}, time.Hour)
	require.NoError(t, err)

	claims := &auth.AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleBuyer}
	require.NoError(t, syncer.Sync(context.Background(), claims))
	require.NoError(t, syncer.Sync(context.Background(), claims))
	require.Equal(t, 1, repo.calls)

	other := &auth.AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleFarmer}
	require.NoError(t, syncer.Sync(context.Background(), other))
	require.Equal(t, 2, repo.calls)
}

func TestSyncerWithoutGateAlwaysUpserts(t *testing.T) {
	repo := &countingUpserter{}
	syncer, err := NewSyncer(repo, nil, 0)
	require.NoError(t, err)

	claims := &auth.AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleBuyer}
	require.NoError(t, syncer.Sync(context.Background(), claims))
	require.NoError(t, syncer.Sync(context.Background(), claims))
	require.Equal(t, 2, repo.calls)
}
