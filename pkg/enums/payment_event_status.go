package enums

// PaymentEventStatus is the state recorded by a payment ledger entry.
type PaymentEventStatus string

const (
	PaymentEventInitiated  PaymentEventStatus = "initiated"
	PaymentEventAuthorized PaymentEventStatus = "authorized"
	PaymentEventCaptured   PaymentEventStatus = "captured"
	PaymentEventSettled    PaymentEventStatus = "settled"
	PaymentEventRefunded   PaymentEventStatus = "refunded"
	PaymentEventFailed     PaymentEventStatus = "failed"
)

var validPaymentEventStatuses = []PaymentEventStatus{
	PaymentEventInitiated,
	PaymentEventAuthorized,
	PaymentEventCaptured,
	PaymentEventSettled,
	PaymentEventRefunded,
	PaymentEventFailed,
}

func (v PaymentEventStatus) String() string { return string(v) }

func (v PaymentEventStatus) IsValid() bool { return member(validPaymentEventStatuses, v) }

func ParsePaymentEventStatus(value string) (PaymentEventStatus, error) {
	return parse("payment event status", validPaymentEventStatuses, value)
}

// IsTerminal reports whether the payment can no longer move.
func (v PaymentEventStatus) IsTerminal() bool {
	return v == PaymentEventSettled || v == PaymentEventRefunded || v == PaymentEventFailed
}
