package enums

// MobileMoneyProvider lists the wallets a farmer can be paid into.
type MobileMoneyProvider string

const (
	MobileProviderTelebirr  MobileMoneyProvider = "telebirr"
	MobileProviderCBEBirr   MobileMoneyProvider = "cbe_birr"
	MobileProviderMPesa     MobileMoneyProvider = "m_pesa"
	MobileProviderHelloCash MobileMoneyProvider = "hellocash"
	MobileProviderAmole     MobileMoneyProvider = "amole"
)

var validMobileMoneyProviders = []MobileMoneyProvider{
	MobileProviderTelebirr,
	MobileProviderCBEBirr,
	MobileProviderMPesa,
	MobileProviderHelloCash,
	MobileProviderAmole,
}

func (v MobileMoneyProvider) String() string { return string(v) }

func (v MobileMoneyProvider) IsValid() bool { return member(validMobileMoneyProviders, v) }

func ParseMobileMoneyProvider(value string) (MobileMoneyProvider, error) {
	return parse("mobile money provider", validMobileMoneyProviders, value)
}
