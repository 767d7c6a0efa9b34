package notifications

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
)

// draft is a notification before it is bound to an event id.
type draft struct {
	UserID    uuid.UUID
	Type      enums.NotificationType
	Title     string
	TitleAm   string
	Message   string
	MessageAm string
	OrderID   *uuid.UUID
	Link      string
}

var statusNamesAm = map[enums.OrderStatus]string{
	enums.OrderStatusPending:   "በመጠባበቅ ላይ",
	enums.OrderStatusConfirmed: "ተረጋግጧል",
	enums.OrderStatusShipped:   "ተልኳል",
	enums.OrderStatusCompleted: "ተጠናቋል",
	enums.OrderStatusCancelled: "ተሰርዟል",
}

func shortRef(id uuid.UUID) string {
	return id.String()[:8]
}

func orderLink(id uuid.UUID) string {
	return fmt.Sprintf("/orders/%s", id)
}

func orderCreatedDrafts(ev *payloads.OrderCreatedEvent) []draft {
	out := make([]draft, 0, len(ev.Orders))
	for _, ref := range ev.Orders {
		orderID := ref.OrderID
		out = append(out, draft{
			UserID:    ref.FarmerID,
			Type:      enums.NotificationOrderPlaced,
			Title:     "New order received",
			TitleAm:   "አዲስ ትዕዛዝ ደርሷል",
			Message:   fmt.Sprintf("Order %s for %s %s is waiting for your confirmation.", shortRef(orderID), ref.Subtotal.StringFixed(2), ev.Currency),
			MessageAm: fmt.Sprintf("ትዕዛዝ %s (%s %s) ማረጋገጫዎን እየጠበቀ ነው።", shortRef(orderID), ref.Subtotal.StringFixed(2), ev.Currency),
			OrderID:   &orderID,
			Link:      orderLink(orderID),
		})
	}
	return out
}

// statusChangedDrafts notifies the counterparty of whoever moved the order.
// Admin and system transitions notify both sides.
func statusChangedDrafts(ev *payloads.OrderStatusChangedEvent) []draft {
	var recipients []uuid.UUID
	switch ev.ActorRole {
	case enums.RoleBuyer:
		recipients = []uuid.UUID{ev.FarmerID}
	case enums.RoleFarmer:
		recipients = []uuid.UUID{ev.BuyerID}
	default:
		recipients = []uuid.UUID{ev.BuyerID, ev.FarmerID}
	}

	orderID := ev.OrderID
	message := fmt.Sprintf("Order %s is now %s.", shortRef(orderID), ev.To)
	messageAm := fmt.Sprintf("ትዕዛዝ %s %s።", shortRef(orderID), statusNamesAm[ev.To])
	if ev.To == enums.OrderStatusCancelled && ev.Reason != "" {
		message = fmt.Sprintf("Order %s was cancelled. Reason: %s", shortRef(orderID), ev.Reason)
		messageAm = fmt.Sprintf("ትዕዛዝ %s ተሰርዟል። ምክንያት፡ %s", shortRef(orderID), ev.Reason)
	}

	out := make([]draft, 0, len(recipients))
	for _, userID := range recipients {
		if userID == uuid.Nil {
			continue
		}
		out = append(out, draft{
			UserID:    userID,
			Type:      enums.NotificationOrderStatus,
			Title:     "Order updated",
			TitleAm:   "ትዕዛዝ ተዘምኗል",
			Message:   message,
			MessageAm: messageAm,
			OrderID:   &orderID,
			Link:      orderLink(orderID),
		})
	}
	return out
}

func verificationRequestedDrafts(ev *payloads.PayoutVerificationRequestedEvent) []draft {
	return []draft{{
		UserID:    ev.OwnerID,
		Type:      enums.NotificationPayoutVerification,
		Title:     "Payout verification code",
		TitleAm:   "የክፍያ ማረጋገጫ ኮድ",
		Message:   fmt.Sprintf("Your code for %s is %s. It expires at %s UTC.", ev.Destination, ev.Code, ev.ExpiresAt.UTC().Format("15:04")),
		MessageAm: fmt.Sprintf("ለ%s የማረጋገጫ ኮድዎ %s ነው። በ%s UTC ጊዜው ያበቃል።", ev.Destination, ev.Code, ev.ExpiresAt.UTC().Format("15:04")),
		Link:      "/payout-methods",
	}}
}

func payoutVerifiedDrafts(ev *payloads.PayoutMethodVerifiedEvent) []draft {
	return []draft{{
		UserID:    ev.OwnerID,
		Type:      enums.NotificationPayoutVerification,
		Title:     "Payout method verified",
		TitleAm:   "የክፍያ መቀበያ ተረጋግጧል",
		Message:   "Your payout method is verified and can now receive settlements.",
		MessageAm: "የክፍያ መቀበያዎ ተረጋግጧል፤ አሁን ክፍያ መቀበል ይችላል።",
		Link:      "/payout-methods",
	}}
}

func settlementResolvedDrafts(ev *payloads.SettlementResolvedEvent) []draft {
	orderID := ev.OrderID
	d := draft{
		UserID:  ev.FarmerID,
		Type:    enums.NotificationSettlement,
		OrderID: &orderID,
		Link:    "/settlements",
	}
	switch ev.Status {
	case enums.SettlementCompleted:
		d.Title, d.TitleAm = "Payout sent", "ክፍያ ተልኳል"
		d.Message = fmt.Sprintf("The payout for order %s has been sent.", shortRef(orderID))
		d.MessageAm = fmt.Sprintf("ለትዕዛዝ %s ክፍያ ተልኳል።", shortRef(orderID))
	case enums.SettlementFailed:
		d.Title, d.TitleAm = "Payout failed", "ክፍያ አልተሳካም"
		d.Message = fmt.Sprintf("The payout for order %s failed: %s", shortRef(orderID), ev.Reason)
		d.MessageAm = fmt.Sprintf("ለትዕዛዝ %s ክፍያ አልተሳካም፡ %s", shortRef(orderID), ev.Reason)
	default:
		return nil
	}
	return []draft{d}
}

func reviewSubmittedDrafts(ev *payloads.ReviewSubmittedEvent) []draft {
	if ev.FarmerID == uuid.Nil {
		return nil
	}
	return []draft{{
		UserID:    ev.FarmerID,
		Type:      enums.NotificationReview,
		Title:     "New review",
		TitleAm:   "አዲስ ግምገማ",
		Message:   fmt.Sprintf("A buyer rated your %s %d/5.", ev.TargetType, ev.Rating),
		MessageAm: fmt.Sprintf("አንድ ገዢ %d/5 ደረጃ ሰጥቷል።", ev.Rating),
		Link:      fmt.Sprintf("/reviews?targetType=%s&targetId=%s", ev.TargetType, ev.TargetID),
	}}
}

// draftsFor maps a decoded payload to the notifications it produces. Unknown
// payloads produce none.
func draftsFor(payload any) []draft {
	switch ev := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return orderCreatedDrafts(ev)
	case *payloads.OrderStatusChangedEvent:
		return statusChangedDrafts(ev)
	case *payloads.PayoutVerificationRequestedEvent:
		return verificationRequestedDrafts(ev)
	case *payloads.PayoutMethodVerifiedEvent:
		return payoutVerifiedDrafts(ev)
	case *payloads.SettlementResolvedEvent:
		return settlementResolvedDrafts(ev)
	case *payloads.ReviewSubmittedEvent:
		return reviewSubmittedDrafts(ev)
	default:
		return nil
	}
}
