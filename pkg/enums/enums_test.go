package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNormalisesInput(t *testing.T) {
	status, err := ParseOrderStatus("  Shipped ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)

	method, err := ParsePaymentMethod("TELEBIRR")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodTelebirr, method)
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := ParseOrderStatus("refunded")
	require.EqualError(t, err, `invalid order status "refunded"`)

	_, err = ParseRole("")
	require.Error(t, err)
}

func TestIsValidIsExact(t *testing.T) {
	assert.True(t, RoleFarmer.IsValid())
	assert.False(t, Role("Farmer").IsValid())
	assert.True(t, EventOrderCreated.IsValid())
	assert.False(t, OutboxEventType("order_deleted").IsValid())
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped} {
		assert.False(t, s.IsTerminal(), s)
	}
}
