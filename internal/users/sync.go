package users

import (
	"context"
	"errors"
	"time"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
)

const defaultSyncInterval = 6 * time.Hour

type syncGate interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CounterKey(name string) string
}

type profileUpserter interface {
	Upsert(ctx context.Context, p Profile) error
}

// Syncer mirrors token identities into the users table so that names can be
// shown next to reviews and orders. A redis key throttles the upsert to once
// per interval per user.
type Syncer struct {
	repo     profileUpserter
	gate     syncGate
	interval time.Duration
}

func NewSyncer(repo profileUpserter, gate syncGate, interval time.Duration) (*Syncer, error) {
	if repo == nil {
		return nil, errors.New("users repository required")
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Syncer{repo: repo, gate: gate, interval: interval}, nil
}

// Sync upserts the profile carried by the claims unless it was synced within
// the interval.
func (s *Syncer) Sync(ctx context.Context, claims *auth.AccessTokenClaims) error {
	if claims == nil {
		return errors.New("claims required")
	}
	if s.gate != nil {
		first, err := s.gate.SetNX(ctx, s.gate.CounterKey("user_sync:"+claims.UserID.String()), "1", s.interval)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}
	return s.repo.Upsert(ctx, ProfileFromClaims(claims))
}
