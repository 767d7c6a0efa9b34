package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
)

const (
	// MaxLineItems caps distinct listings in a single checkout.
	MaxLineItems = 50
	// MaxQuantity caps the quantity of one line.
	MaxQuantity = 50
)

// LineInput is one requested listing and quantity.
type LineInput struct {
	ListingID uuid.UUID `json:"listingId"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=50"`
}

// NormalizeLines rejects empty carts and non-positive quantities and merges
// repeated listings, keeping first-seen order.
func NormalizeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]LineInput, 0, len(lines))
	for i, line := range lines {
		if line.ListingID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required").WithDetails(map[string]any{"index": i})
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").WithDetails(map[string]any{
				"index":     i,
				"listingId": line.ListingID,
			})
		}
		if line.Quantity > MaxQuantity {
			return nil, quantityTooLarge(line.ListingID)
		}
		if pos, ok := index[line.ListingID]; ok {
			// Checked before adding so merged totals cannot overflow.
			if out[pos].Quantity > MaxQuantity-line.Quantity {
				return nil, quantityTooLarge(line.ListingID)
			}
			out[pos].Quantity += line.Quantity
			continue
		}
		index[line.ListingID] = len(out)
		out = append(out, line)
	}
	if len(out) > MaxLineItems {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "order may contain at most %d listings", MaxLineItems)
	}
	return out, nil
}

func quantityTooLarge(listingID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity may be at most %d", MaxQuantity).WithDetails(map[string]any{
		"listingId": listingID,
	})
}

// AvailabilityInput describes the stock check for one line.
type AvailabilityInput struct {
	ListingID   uuid.UUID
	ListingName string
	Found       bool
	Active      bool
	Available   int
	Requested   int
}

// AvailabilityViolation is returned to callers when a line cannot be filled.
type AvailabilityViolation struct {
	ListingID    uuid.UUID `json:"listingId"`
	ListingName  string    `json:"listingName,omitempty"`
	Reason       string    `json:"reason"`
	AvailableQty int       `json:"availableQty"`
	RequestedQty int       `json:"requestedQty"`
}

// ValidateAvailability ensures every line refers to an active listing with
// enough stock. The server's availability is authoritative.
func ValidateAvailability(items []AvailabilityInput) error {
	var violations []AvailabilityViolation
	for _, item := range items {
		reason := ""
		switch {
		case !item.Found:
			reason = "not_found"
		case !item.Active:
			reason = "inactive"
		case item.Requested > item.Available:
			reason = "insufficient_stock"
		default:
			continue
		}
		violations = append(violations, AvailabilityViolation{
			ListingID:    item.ListingID,
			ListingName:  item.ListingName,
			Reason:       reason,
			AvailableQty: item.Available,
			RequestedQty: item.Requested,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d item(s) cannot be fulfilled", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
