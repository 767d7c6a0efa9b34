package enums

// PaymentMethod is how the buyer intends to pay for an order.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodTelebirr       PaymentMethod = "telebirr"
	PaymentMethodCBEBirr        PaymentMethod = "cbe_birr"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCashOnDelivery,
	PaymentMethodTelebirr,
	PaymentMethodCBEBirr,
	PaymentMethodBankTransfer,
}

func (v PaymentMethod) String() string { return string(v) }

func (v PaymentMethod) IsValid() bool { return member(validPaymentMethods, v) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", validPaymentMethods, value)
}
