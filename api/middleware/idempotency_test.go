package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	pkgredis "github.com/gebeya-market/gebeya-backend/pkg/redis"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func buyerRequest(method, url, body string, buyer uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	return req.WithContext(WithActor(req.Context(), auth.Actor{UserID: buyer, Role: enums.RoleBuyer}))
}

func TestIdempotencyMiddlewareRequiresHeaderForCheckout(t *testing.T) {
	mw := NewIdempotency(newFakeStore(), nil).With(IdempotentCheckout)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := buyerRequest(http.MethodPost, "/api/v1/orders", `{"items":[]}`, uuid.New())
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareOptionalHeaderPassesThrough(t *testing.T) {
	store := newFakeStore()
	mw := NewIdempotency(store, nil).With(IdempotentWeekly)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := buyerRequest(http.MethodPatch, "/api/v1/orders/1/cancel", `{}`, uuid.New())
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice got %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected nothing stored without a key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := NewIdempotency(store, nil).With(IdempotentCheckout)
	buyer := uuid.New()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := buyerRequest(http.MethodPost, "/api/v1/orders", `{"items":[1]}`, buyer)
	req.Header.Set(IdempotencyKeyHeader, "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	replay := buyerRequest(http.MethodPost, "/api/v1/orders", `{"items":[1]}`, buyer)
	replay.Header.Set(IdempotencyKeyHeader, "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}

	other := buyerRequest(http.MethodPost, "/api/v1/orders", `{"items":[1]}`, uuid.New())
	other.Header.Set(IdempotencyKeyHeader, "abc")
	mw(handler).ServeHTTP(httptest.NewRecorder(), other)
	if calls != 2 {
		t.Fatalf("keys must be scoped per user, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareSkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := NewIdempotency(store, nil).With(IdempotentCheckout)
	buyer := uuid.New()
	status := http.StatusServiceUnavailable
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	req := buyerRequest(http.MethodPost, "/api/v1/orders", `{}`, buyer)
	req.Header.Set(IdempotencyKeyHeader, "retry")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	status = http.StatusCreated
	retry := buyerRequest(http.MethodPost, "/api/v1/orders", `{}`, buyer)
	retry.Header.Set(IdempotencyKeyHeader, "retry")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, retry)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected retry to reach handler, got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := NewIdempotency(store, nil).With(IdempotentCheckout)
	buyer := uuid.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := buyerRequest(http.MethodPost, "/api/v1/reviews", `{"rating":5}`, buyer)
	req.Header.Set(IdempotencyKeyHeader, "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := buyerRequest(http.MethodPost, "/api/v1/reviews", `{"rating":1}`, buyer)
	replay.Header.Set(IdempotencyKeyHeader, "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	idem := NewIdempotency(store, nil)
	buyer := uuid.New()

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A duplicate arrives while the first request is still running.
		dup := buyerRequest(http.MethodPost, "/api/v1/orders", `{}`, buyer)
		dup.Header.Set(IdempotencyKeyHeader, "same")
		inner = httptest.NewRecorder()
		idem.With(IdempotentCheckout)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatalf("duplicate must not reach the handler")
		})).ServeHTTP(inner, dup)
		w.WriteHeader(http.StatusCreated)
	})

	req := buyerRequest(http.MethodPost, "/api/v1/orders", `{}`, buyer)
	req.Header.Set(IdempotencyKeyHeader, "same")
	resp := httptest.NewRecorder()
	idem.With(IdempotentCheckout)(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %+v", inner)
	}
}

func TestIdempotencyNilStorePassesThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	NewIdempotency(nil, nil).With(IdempotentCheckout)(handler).ServeHTTP(httptest.NewRecorder(), buyerRequest(http.MethodPost, "/api/v1/orders", `{}`, uuid.New()))
	if !called {
		t.Fatalf("expected handler to run without a store")
	}
}
