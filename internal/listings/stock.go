package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stock binds reservations to the caller's transaction.
type Stock struct {
	repo Repository
}

func NewStock(repo Repository) *Stock {
	return &Stock{repo: repo}
}

func (s *Stock) Reserve(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	return s.repo.WithTx(tx).Reserve(ctx, listingID, qty)
}

func (s *Stock) Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	return s.repo.WithTx(tx).Release(ctx, listingID, qty)
}
