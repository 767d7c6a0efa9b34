package orders

import (
	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusCompleted},
}

// CanTransition reports whether from → to is an edge of the order lifecycle.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTargets lists the statuses reachable from the given one.
func AllowedTargets(from enums.OrderStatus) []enums.OrderStatus {
	return append([]enums.OrderStatus(nil), transitions[from]...)
}

// Authorize checks that actor may move order to target. The transition table
// itself is checked separately; admin and system actors skip role checks only.
func Authorize(order *models.Order, to enums.OrderStatus, actor auth.Actor) error {
	if actor.Privileged() {
		return nil
	}
	switch actor.Role {
	case enums.RoleFarmer:
		if order.FarmerID == actor.UserID {
			return nil
		}
	case enums.RoleBuyer:
		if order.BuyerID == actor.UserID {
			if to == enums.OrderStatusCancelled && order.Status == enums.OrderStatusPending {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel pending orders")
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
}

// AuthorizeRepeat checks a request for the status the order already has. Only
// an actor who could have applied that status gets the no-op; buyers may
// repeat a cancellation and nothing else.
func AuthorizeRepeat(order *models.Order, actor auth.Actor) error {
	if actor.Role == enums.RoleBuyer && order.BuyerID == actor.UserID {
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel pending orders")
	}
	return Authorize(order, order.Status, actor)
}

// CanView reports whether actor may read the order.
func CanView(order *models.Order, actor auth.Actor) bool {
	if actor.Privileged() {
		return true
	}
	return order.BuyerID == actor.UserID || order.FarmerID == actor.UserID
}

// ledgerStatusFor maps an order status to the payment event it records.
func ledgerStatusFor(to enums.OrderStatus) (enums.PaymentEventStatus, bool) {
	switch to {
	case enums.OrderStatusConfirmed:
		return enums.PaymentEventAuthorized, true
	case enums.OrderStatusCompleted:
		return enums.PaymentEventCaptured, true
	case enums.OrderStatusCancelled:
		return enums.PaymentEventFailed, true
	}
	return "", false
}
