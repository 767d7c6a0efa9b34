package notifications

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 16
)

// streamClient is one websocket connection of one user.
type streamClient struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks live unread-count streams per user and relays counter messages
// received from redis pub/sub to them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*streamClient]struct{}
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	logg       *logger.Logger
}

// NewHub builds a hub. A nil checkOrigin keeps the same-origin check of
// websocket.Upgrader.
func NewHub(pingPeriod time.Duration, checkOrigin func(r *http.Request) bool, logg *logger.Logger) *Hub {
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = (pongWait * 9) / 10
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		pingPeriod: pingPeriod,
		logg:       logg,
	}
}

// AllowOrigins admits upgrades whose Origin header is in origins. "*" admits
// every origin. Requests without an Origin header come from non-browser
// clients and are admitted. Empty origins leaves the same-origin default.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

// Serve upgrades the request and streams unread counts for userID. initial is
// sent immediately after the upgrade.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID, initial []byte) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &streamClient{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(client)
	if len(initial) > 0 {
		client.send <- initial
	}
	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// Deliver queues data for every stream of userID. Slow clients drop messages;
// the next count supersedes the missed one.
func (h *Hub) Deliver(userID uuid.UUID, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
			delivered++
		default:
		}
	}
	return delivered
}

// ClientCount returns the number of open streams for userID.
func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Relay forwards messages from the notification pattern subscription until
// ctx is done or the channel closes.
func (h *Hub) Relay(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			userID, err := userFromChannel(msg.Channel)
			if err != nil {
				h.logg.Warn(h.logg.WithField(ctx, "channel", msg.Channel), "ignoring message on unexpected channel")
				continue
			}
			h.Deliver(userID, []byte(msg.Payload))
		}
	}
}

func userFromChannel(channel string) (uuid.UUID, error) {
	idx := strings.LastIndex(channel, ":")
	return uuid.Parse(channel[idx+1:])
}

func (h *Hub) register(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*streamClient]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// readPump only services control frames; clients never send data.
func (h *Hub) readPump(c *streamClient) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logg.Warn(h.logg.WithField(context.Background(), "user_id", c.userID.String()), "notification stream closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *streamClient) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
