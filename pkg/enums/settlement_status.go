package enums

// SettlementStatus tracks a payout of captured funds to a farmer.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
	SettlementFailed    SettlementStatus = "failed"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementPending,
	SettlementCompleted,
	SettlementFailed,
}

func (v SettlementStatus) String() string { return string(v) }

func (v SettlementStatus) IsValid() bool { return member(validSettlementStatuses, v) }

func ParseSettlementStatus(value string) (SettlementStatus, error) {
	return parse("settlement status", validSettlementStatuses, value)
}
