package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

// quietPrefixes are probed constantly; their completions log at debug.
var quietPrefixes = []string{"/health/", "/metrics"}

// Logging writes one line per request once it completes. The line carries
// the matched route pattern, status, size and latency, plus the caller when
// Auth identified one further down the chain.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			trace := &requestTrace{}
			ctx := context.WithValue(r.Context(), ctxTrace, trace)
			ctx = logg.WithFields(ctx, map[string]any{
				"method":    r.Method,
				"path":      r.URL.Path,
				"client_ip": clientIP(r),
			})

			rec := recorderFor(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := map[string]any{
				"status":      rec.Status(),
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					fields["route"] = pattern
				}
			}
			if trace.userID != "" {
				fields["user_id"] = trace.userID
			}
			done := logg.WithFields(ctx, fields)

			switch {
			case isQuiet(r.URL.Path):
				logg.Debug(done, "request.complete")
			case rec.Status() >= http.StatusInternalServerError:
				logg.Warn(done, "request.complete")
			default:
				logg.Info(done, "request.complete")
			}
		})
	}
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
