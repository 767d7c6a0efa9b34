package enums

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (v OrderStatus) String() string { return string(v) }

func (v OrderStatus) IsValid() bool { return member(validOrderStatuses, v) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", validOrderStatuses, value)
}

// IsTerminal reports whether no further transitions are possible.
func (v OrderStatus) IsTerminal() bool {
	return v == OrderStatusCompleted || v == OrderStatusCancelled
}
