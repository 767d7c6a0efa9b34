package helpers

import (
	"strings"
	"unicode/utf8"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/phone"
)

const (
	maxAddressLength = 300
	maxNotesLength   = 500
)

// DeliveryInput carries where and how an order is delivered and paid.
type DeliveryInput struct {
	Address       string
	City          *string
	ContactPhone  *string
	Notes         *string
	PaymentMethod enums.PaymentMethod
}

// ValidateDelivery trims the free-text fields and returns the cleaned copy.
func ValidateDelivery(in DeliveryInput) (DeliveryInput, error) {
	out := in
	out.Address = strings.TrimSpace(in.Address)
	if out.Address == "" {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	if utf8.RuneCountInString(out.Address) > maxAddressLength {
		return out, pkgerrors.Newf(pkgerrors.CodeValidation, "delivery address must be at most %d characters", maxAddressLength)
	}
	if out.PaymentMethod == "" {
		out.PaymentMethod = enums.PaymentMethodCashOnDelivery
	}
	if !out.PaymentMethod.IsValid() {
		return out, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %q", in.PaymentMethod)
	}
	out.City = trimOptional(in.City)
	out.Notes = trimOptional(in.Notes)
	if out.Notes != nil && utf8.RuneCountInString(*out.Notes) > maxNotesLength {
		return out, pkgerrors.Newf(pkgerrors.CodeValidation, "notes must be at most %d characters", maxNotesLength)
	}
	if in.ContactPhone != nil && strings.TrimSpace(*in.ContactPhone) != "" {
		normalized := phone.Normalize(*in.ContactPhone)
		if normalized == "" {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "contact phone must be an Ethiopian mobile number")
		}
		out.ContactPhone = &normalized
	} else {
		out.ContactPhone = nil
	}
	return out, nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
