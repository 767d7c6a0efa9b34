package auth

import (
	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
)

// Actor is the resolved caller of a domain operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// SystemActor is used by background jobs.
func SystemActor() Actor {
	return Actor{Role: enums.RoleSystem}
}

func (a Actor) IsAdmin() bool  { return a.Role == enums.RoleAdmin }
func (a Actor) IsSystem() bool { return a.Role == enums.RoleSystem }

// Privileged reports whether the actor bypasses ownership checks.
func (a Actor) Privileged() bool { return a.IsAdmin() || a.IsSystem() }

// UserIDPtr returns nil for actors without a user id.
func (a Actor) UserIDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// Ref converts the actor into the outbox envelope form.
func (a Actor) Ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserIDPtr(), Role: a.Role}
}

// ActorFromClaims builds the actor for an authenticated request.
func ActorFromClaims(c *AccessTokenClaims) Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role}
}
