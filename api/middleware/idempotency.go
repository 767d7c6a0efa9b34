package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gebeya-market/gebeya-backend/api/responses"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	pkgredis "github.com/gebeya-market/gebeya-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotency-Replayed"

	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL     = 2 * time.Minute
	maxKeyLength   = 128
	maxReplayBytes = 1 << 20
)

// IdempotencyPolicy is attached per route. Required rejects requests that
// carry no key; otherwise a missing key simply disables replay.
type IdempotencyPolicy struct {
	TTL      time.Duration
	Required bool
}

var (
	IdempotentDaily    = IdempotencyPolicy{TTL: 24 * time.Hour}
	IdempotentWeekly   = IdempotencyPolicy{TTL: 7 * 24 * time.Hour}
	IdempotentCheckout = IdempotencyPolicy{TTL: 7 * 24 * time.Hour, Required: true}
)

// IdempotencyStore is the redis surface the middleware needs.
type IdempotencyStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// storedResponse is what lives under a key: a pending reservation while the
// first request runs, then the settled response.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first settled response for a (user, method, path,
// key) tuple. Server errors release the key so clients can retry.
type Idempotency struct {
	store IdempotencyStore
	logg  *logger.Logger
}

// NewIdempotency returns a middleware factory. A nil store turns every
// policy into a pass-through.
func NewIdempotency(store IdempotencyStore, logg *logger.Logger) *Idempotency {
	return &Idempotency{store: store, logg: logg}
}

func (m *Idempotency) With(policy IdempotencyPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "" && policy.Required:
				responses.WriteError(ctx, m.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case clientKey == "":
				next.ServeHTTP(w, r)
				return
			case len(clientKey) > maxKeyLength:
				responses.WriteError(ctx, m.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, m.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := m.store.IdempotencyKey(strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

			reserved, err := m.reserve(ctx, key, hash)
			if err != nil {
				responses.WriteError(ctx, m.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if !reserved {
				m.replay(ctx, w, key, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			m.settle(ctx, key, hash, policy.TTL, capture)
		})
	}
}

func (m *Idempotency) reserve(ctx context.Context, key, hash string) (bool, error) {
	marker, err := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, string(marker), pendingTTL)
}

func (m *Idempotency) replay(ctx context.Context, w http.ResponseWriter, key, hash string) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, pkgredis.Nil) {
		// The reservation expired between SETNX and GET.
		responses.WriteError(ctx, m.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, m.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, m.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, m.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, m.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func (m *Idempotency) settle(ctx context.Context, key, hash string, ttl time.Duration, capture *responseCapture) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError || capture.overflow {
		if err := m.store.Del(ctx, key); err != nil && m.logg != nil {
			m.logg.Error(ctx, "release idempotency key", err)
		}
		return
	}
	record, err := json.Marshal(storedResponse{
		RequestHash: hash,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err == nil {
		err = m.store.Set(ctx, key, string(record), ttl)
	}
	if err != nil && m.logg != nil {
		m.logg.Error(ctx, "persist idempotency record", err)
	}
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// responseCapture tees the response so it can be stored for replay. Bodies
// larger than maxReplayBytes are passed through but not stored.
type responseCapture struct {
	http.ResponseWriter
	body     bytes.Buffer
	status   int
	overflow bool
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	if !c.overflow {
		if c.body.Len()+len(b) > maxReplayBytes {
			c.overflow = true
			c.body.Reset()
		} else {
			c.body.Write(b)
		}
	}
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
