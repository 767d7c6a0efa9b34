package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/checkout"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
)

// FarmerGroup is the slice of a checkout that becomes one order.
type FarmerGroup struct {
	FarmerID uuid.UUID
	Items    []models.OrderLineItem
	Subtotal decimal.Decimal
}

// GroupLinesByFarmer snapshots each line from its listing and groups them by
// farmer in first-seen order. Every line must have a listing in the map.
func GroupLinesByFarmer(lines []checkout.LineInput, listings map[uuid.UUID]models.Listing) []FarmerGroup {
	var groups []FarmerGroup
	index := map[uuid.UUID]int{}
	for _, line := range lines {
		listing := listings[line.ListingID]
		item := SnapshotLine(listing, line.Quantity)
		pos, ok := index[listing.FarmerID]
		if !ok {
			pos = len(groups)
			index[listing.FarmerID] = pos
			groups = append(groups, FarmerGroup{FarmerID: listing.FarmerID, Subtotal: decimal.Zero})
		}
		groups[pos].Items = append(groups[pos].Items, item)
		groups[pos].Subtotal = groups[pos].Subtotal.Add(item.LineTotal)
	}
	return groups
}

// SnapshotLine copies the listing fields an order line freezes.
func SnapshotLine(listing models.Listing, qty int) models.OrderLineItem {
	return models.OrderLineItem{
		ListingID:     listing.ID,
		ListingName:   listing.Name,
		ListingNameAm: listing.NameAm,
		Unit:          listing.Unit,
		Quantity:      qty,
		PricePerUnit:  listing.PricePerUnit,
		LineTotal:     listing.PricePerUnit.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}
