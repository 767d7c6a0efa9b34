package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
	ctxLang   contextKey = "lang"
	ctxTrace  contextKey = "trace"
)

// requestTrace is shared by Logging with the handlers below it.
type requestTrace struct {
	userID string
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// LanguageFromContext returns the preferred language carried by the token,
// defaulting to English.
func LanguageFromContext(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(ctxLang).(string); ok && v == "am" {
			return v
		}
	}
	return "en"
}

// ActorFromContext resolves the authenticated caller. ok is false when the
// request did not pass through Auth.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return auth.Actor{}, false
	}
	role, err := enums.ParseRole(RoleFromContext(ctx))
	if err != nil {
		return auth.Actor{}, false
	}
	return auth.Actor{UserID: id, Role: role}, true
}

// WithActor injects an authenticated actor into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, string(actor.Role))
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// RequestActor is ActorFromContext for handlers: a missing actor becomes an
// unauthorized error.
func RequestActor(ctx context.Context) (auth.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}
