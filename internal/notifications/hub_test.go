package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

func dialStream(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, userID, []byte(`{"unread":2}`))
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHubStreamsInitialAndRelayedCounts(t *testing.T) {
	hub := NewHub(time.Second, nil, logger.Nop())
	user := uuid.New()
	conn := dialStream(t, hub, user)

	assert.Equal(t, `{"unread":2}`, readText(t, conn))
	require.Eventually(t, func() bool { return hub.ClientCount(user) == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages := make(chan *redis.Message, 2)
	go hub.Relay(ctx, messages)

	messages <- &redis.Message{Channel: "gebeya:notify:" + uuid.NewString(), Payload: `{"unread":9}`}
	messages <- &redis.Message{Channel: "gebeya:notify:" + user.String(), Payload: `{"unread":3}`}
	assert.Equal(t, `{"unread":3}`, readText(t, conn))
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub(time.Second, nil, logger.Nop())
	user := uuid.New()
	conn := dialStream(t, hub, user)
	readText(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount(user) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(user) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.Deliver(user, []byte(`{"unread":1}`)))
}

func TestUserFromChannel(t *testing.T) {
	id := uuid.New()
	got, err := userFromChannel("gebeya:notify:" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = userFromChannel("gebeya:notify:nope")
	assert.Error(t, err)
}

func TestAllowOrigins(t *testing.T) {
	check := AllowOrigins([]string{"https://app.gebeya.test/"})
	require.NotNil(t, check)

	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://APP.gebeya.test")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.Nil(t, AllowOrigins(nil))
	wildcard := AllowOrigins([]string{"*"})
	assert.True(t, wildcard(req))
}

func TestStreamRefusesForeignOrigin(t *testing.T) {
	hub := NewHub(time.Second, AllowOrigins([]string{"https://app.gebeya.test"}), logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, uuid.New(), []byte(`{"unread":0}`))
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.gebeya.test")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, `{"unread":0}`, readText(t, conn))
}
