package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// ActorRef identifies who produced the event. System actors carry no user id.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Role   enums.Role `json:"role"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParsedEventID returns the envelope id as a UUID, or uuid.Nil when malformed.
func (e PayloadEnvelope) ParsedEventID() uuid.UUID {
	id, err := uuid.Parse(e.EventID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
