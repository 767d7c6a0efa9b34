package payments

import (
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
)

var ledgerTransitions = map[enums.PaymentEventStatus][]enums.PaymentEventStatus{
	enums.PaymentEventInitiated:  {enums.PaymentEventAuthorized, enums.PaymentEventFailed},
	enums.PaymentEventAuthorized: {enums.PaymentEventCaptured, enums.PaymentEventFailed},
	enums.PaymentEventCaptured:   {enums.PaymentEventSettled, enums.PaymentEventRefunded, enums.PaymentEventFailed},
}

// CanAdvance reports whether a ledger whose latest entry is from may record
// to next. An empty from means the order has no entries yet.
func CanAdvance(from, to enums.PaymentEventStatus) bool {
	if from == "" {
		return to == enums.PaymentEventInitiated
	}
	for _, next := range ledgerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ledgerConflict(from, to enums.PaymentEventStatus) error {
	if from == "" {
		from = "none"
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment ledger cannot move from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}
