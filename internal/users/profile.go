package users

import (
	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

// Profile is the slice of identity mirrored from access tokens. The id is
// issued by the identity provider, never generated here.
type Profile struct {
	ID                uuid.UUID
	DisplayName       string
	DisplayNameAm     *string
	Role              enums.Role
	PhoneNumber       *string
	PreferredLanguage string
}

func ProfileFromClaims(c *auth.AccessTokenClaims) Profile {
	return Profile{
		ID:                c.UserID,
		DisplayName:       c.DisplayName,
		Role:              c.Role,
		PreferredLanguage: c.Language,
	}
}

// model fills the columns the marketplace needs even when the token carried
// little: unknown languages fall back to English and a blank name to a
// short id prefix.
func (p Profile) model() *models.User {
	lang := p.PreferredLanguage
	if lang != "am" {
		lang = "en"
	}
	name := p.DisplayName
	if name == "" {
		name = p.ID.String()[:8]
	}
	return &models.User{
		ID:                p.ID,
		DisplayName:       name,
		DisplayNameAm:     p.DisplayNameAm,
		Role:              p.Role,
		PhoneNumber:       p.PhoneNumber,
		PreferredLanguage: lang,
	}
}
