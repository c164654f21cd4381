package nodes

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	hubSendBuffer   = 64
	hubWriteTimeout = 5 * time.Second
)

// DebugRecord is one rendered message as streamed to hub clients.
type DebugRecord struct {
	Node      string         `json:"node"`
	MessageID string         `json:"message_id"`
	Payload   string         `json:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Time      time.Time      `json:"time"`
}

// DebugHub streams debug records to websocket clients.
//
// Each client has a bounded send queue. A client whose queue is full when a
// record is published is disconnected rather than slowing the publisher.
type DebugHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewDebugHub creates an empty hub. A nil logger uses slog.Default.
func NewDebugHub(logger *slog.Logger) *DebugHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client subscribed until it
// disconnects or the hub is closed.
func (h *DebugHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "debug hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("debug hub upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, hubSendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}
	h.logger.Debug("debug client connected", slog.String("remote", r.RemoteAddr))

	go h.writeLoop(c)

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

// Publish sends rec to every connected client.
func (h *DebugHub) Publish(rec DebugRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		h.logger.Warn("debug record not encodable",
			slog.String("node_id", rec.Node),
			slog.String("message_id", rec.MessageID),
			slog.String("error", err.Error()),
		)
		return
	}

	var slow []*hubClient
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow debug client", slog.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// Clients returns the number of connected clients.
func (h *DebugHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *DebugHub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
	return nil
}

func (h *DebugHub) add(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// remove unregisters c and closes its connection. Safe to call more than once.
func (h *DebugHub) remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		c.conn.Close()
	}
}

func (h *DebugHub) writeLoop(c *hubClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
}
