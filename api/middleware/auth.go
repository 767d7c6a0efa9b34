package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gebeya-market/gebeya-backend/api/responses"
	pkgAuth "github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

// IdentitySyncer mirrors verified token identities into local storage.
type IdentitySyncer interface {
	Sync(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error
}

// Auth validates a bearer token and seeds the request context with the
// caller. A failing syncer never blocks the request.
func Auth(cfg config.JWTConfig, syncer IdentitySyncer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), pkgAuth.ActorFromClaims(claims))
			if trace, ok := ctx.Value(ctxTrace).(*requestTrace); ok {
				trace.userID = claims.UserID.String()
			}
			if claims.Language != "" {
				ctx = context.WithValue(ctx, ctxLang, claims.Language)
			}
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				ctx = logg.WithLanguage(ctx, LanguageFromContext(ctx))
			}

			if syncer != nil {
				if err := syncer.Sync(ctx, claims); err != nil && logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "identity sync failed")
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter used by browser websocket clients.
func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}
