package expiry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType is the type of a message pushed to connected UIs.
type EventType string

const (
	EventSessionExpired  EventType = "session_expired"
	EventSessionRestored EventType = "session_restored"
)

// Event is sent to UIs via WebSocket.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
}

// Choice is the user's answer to the session-expired prompt.
type Choice string

const (
	ChoiceRefresh Choice = "refresh"
	ChoiceRelogin Choice = "relogin"
)

// ChoiceMessage is received from UIs via WebSocket.
type ChoiceMessage struct {
	Choice Choice `json:"choice"`
}

// ChoiceHandler handles a prompt choice.
type ChoiceHandler func(ctx context.Context, choice Choice)

// Hub manages WebSocket connections to UIs showing the session-expired
// prompt. It implements Presenter.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*hubClient]struct{}
	expired  bool
	onChoice ChoiceHandler
	upgrader websocket.Upgrader
	logger   *slog.Logger

	writeTimeout time.Duration
}

// DefaultWriteTimeout bounds a single write to a hub client.
const DefaultWriteTimeout = 5 * time.Second

type hubClient struct {
	conn         *websocket.Conn
	wmu          sync.Mutex
	writeTimeout time.Duration
}

// write sends one text frame. A client that does not drain its socket
// within the write timeout gets an error and is dropped by the caller.
func (c *hubClient) write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithChoiceHandler sets the handler for refresh/relogin choices.
func WithChoiceHandler(h ChoiceHandler) HubOption {
	return func(hub *Hub) {
		hub.onChoice = h
	}
}

// WithCheckOrigin overrides the upgrader's origin check. The default
// rejects cross-origin upgrades.
func WithCheckOrigin(fn func(*http.Request) bool) HubOption {
	return func(hub *Hub) {
		hub.upgrader.CheckOrigin = fn
	}
}

// WithWriteTimeout sets the per-write deadline for clients. Non-positive
// values keep DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(hub *Hub) {
		if d > 0 {
			hub.writeTimeout = d
		}
	}
}

// WithHubLogger sets the logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(hub *Hub) {
		hub.logger = l
	}
}

// NewHub creates a hub with no clients.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:       slog.Default().With("component", "expiry-hub"),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetChoiceHandler replaces the choice handler.
func (h *Hub) SetChoiceHandler(fn ChoiceHandler) {
	h.mu.Lock()
	h.onChoice = fn
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and serves the connection until the
// client disconnects. A client that connects while the session is expired
// receives session_expired immediately.
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	client := &hubClient{conn: conn, writeTimeout: h.writeTimeout}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	expired := h.expired
	h.mu.Unlock()

	if expired {
		if data, err := json.Marshal(Event{Type: EventSessionExpired}); err == nil {
			_ = client.write(data)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.handleMessage(req.Context(), data)
	}

	h.remove(client)
}

func (h *Hub) handleMessage(ctx context.Context, data []byte) {
	var msg ChoiceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug("ignoring malformed client message", "error", err)
		return
	}
	if msg.Choice != ChoiceRefresh && msg.Choice != ChoiceRelogin {
		h.logger.Debug("ignoring unknown choice", "choice", msg.Choice)
		return
	}

	h.mu.RLock()
	expired := h.expired
	handler := h.onChoice
	h.mu.RUnlock()

	if !expired || handler == nil {
		return
	}
	handler(ctx, msg.Choice)
}

// ShowExpired broadcasts session_expired.
func (h *Hub) ShowExpired() {
	h.mu.Lock()
	h.expired = true
	h.mu.Unlock()
	h.broadcast(Event{Type: EventSessionExpired, Message: "Your session has expired."})
}

// HideExpired broadcasts session_restored.
func (h *Hub) HideExpired() {
	h.mu.Lock()
	h.expired = false
	h.mu.Unlock()
	h.broadcast(Event{Type: EventSessionRestored})
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}
