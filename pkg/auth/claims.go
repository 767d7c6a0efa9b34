package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// AccessTokenPayload captures the identity data embedded when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	Role        enums.Role
	DisplayName string
	Language    string
	JTI         string
}

// AccessTokenClaims is the typed JWT presented by clients. Tokens are issued
// by the identity provider; this service only verifies them.
type AccessTokenClaims struct {
	UserID      uuid.UUID  `json:"user_id"`
	Role        enums.Role `json:"role"`
	DisplayName string     `json:"name,omitempty"`
	Language    string     `json:"lang,omitempty"`
	jwt.RegisteredClaims
}

var _ jwt.ClaimsValidator = AccessTokenClaims{}

// Validate runs after the registered claims pass. The system role is reserved
// for background jobs and never arrives over HTTP.
func (c AccessTokenClaims) Validate() error {
	return checkIdentity(c.UserID, c.Role)
}

func checkIdentity(userID uuid.UUID, role enums.Role) error {
	if userID == uuid.Nil {
		return errors.New("user id is required")
	}
	if !role.IsValid() || role == enums.RoleSystem {
		return fmt.Errorf("invalid role %q", role)
	}
	return nil
}
