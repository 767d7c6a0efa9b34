package enums

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationOrderPlaced        NotificationType = "order_placed"
	NotificationOrderStatus        NotificationType = "order_status"
	NotificationPayoutVerification NotificationType = "payout_verification"
	NotificationSettlement         NotificationType = "settlement"
	NotificationReview             NotificationType = "review"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderPlaced,
	NotificationOrderStatus,
	NotificationPayoutVerification,
	NotificationSettlement,
	NotificationReview,
}

func (v NotificationType) String() string { return string(v) }

func (v NotificationType) IsValid() bool { return member(validNotificationTypes, v) }

func ParseNotificationType(value string) (NotificationType, error) {
	return parse("notification type", validNotificationTypes, value)
}
