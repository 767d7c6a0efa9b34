package enums

// PayoutMethodType distinguishes bank accounts from mobile money wallets.
type PayoutMethodType string

const (
	PayoutMethodBank   PayoutMethodType = "bank"
	PayoutMethodMobile PayoutMethodType = "mobile"
)

var validPayoutMethodTypes = []PayoutMethodType{
	PayoutMethodBank,
	PayoutMethodMobile,
}

func (v PayoutMethodType) String() string { return string(v) }

func (v PayoutMethodType) IsValid() bool { return member(validPayoutMethodTypes, v) }

func ParsePayoutMethodType(value string) (PayoutMethodType, error) {
	return parse("payout method type", validPayoutMethodTypes, value)
}
