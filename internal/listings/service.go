package listings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
)

// ListingDTO is the public shape clients copy into their cart.
type ListingDTO struct {
	ID                uuid.UUID       `json:"id"`
	FarmerID          uuid.UUID       `json:"farmerId"`
	Name              string          `json:"name"`
	NameAm            *string         `json:"nameAm,omitempty"`
	Unit              string          `json:"unit"`
	PricePerUnit      decimal.Decimal `json:"pricePerUnit"`
	AvailableQuantity int             `json:"availableQuantity"`
	ImageRefs         []string        `json:"imageRefs"`
	IsActive          bool            `json:"isActive"`
}

func toDTO(l models.Listing) ListingDTO {
	refs := l.ImageRefs
	if refs == nil {
		refs = []string{}
	}
	return ListingDTO{
		ID:                l.ID,
		FarmerID:          l.FarmerID,
		Name:              l.Name,
		NameAm:            l.NameAm,
		Unit:              l.Unit,
		PricePerUnit:      l.PricePerUnit,
		AvailableQuantity: l.AvailableQuantity,
		ImageRefs:         refs,
		IsActive:          l.IsActive,
	}
}

type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("listings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	dto := toDTO(*listing)
	return &dto, nil
}
