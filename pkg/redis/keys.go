package redis

import "strings"

const keyNamespace = "gebeya"

// IdempotencyKey scopes request and event replay markers.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

// CounterKey holds cached counters such as unread notification totals.
func (c *Client) CounterKey(name string) string {
	return buildKey("counter", name)
}

// VerificationKey holds a hashed payout verification code or its attempts.
func (c *Client) VerificationKey(scope, id string) string {
	return buildKey("verify", scope, id)
}

func (c *Client) LockKey(name string) string {
	return buildKey("lock", name)
}

// NotificationChannel carries one user's unread-count updates.
func (c *Client) NotificationChannel(userID string) string {
	return buildKey("notify", userID)
}

// NotificationPattern matches every NotificationChannel.
func (c *Client) NotificationPattern() string {
	return buildKey("notify", "*")
}

// buildKey joins the namespace and every non-blank part with colons.
func buildKey(parts ...string) string {
	b := strings.Builder{}
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
