// Package feed pushes the tracker's view and every notification to websocket
// clients.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mmynk/travelspend/internal/notify"
	"github.com/mmynk/travelspend/internal/tracker"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	defaultBuffer = 16
)

// Frame types.
const (
	FrameView         = "view"
	FrameNotification = "notification"
)

// Frame is one message sent to clients.
type Frame struct {
	Type         string               `json:"type"`
	View         *tracker.View        `json:"view,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// ViewSource provides the view sent to clients.
type ViewSource interface {
	View() tracker.View
}

// ViewFunc adapts a function to ViewSource.
type ViewFunc func() tracker.View

func (f ViewFunc) View() tracker.View { return f() }

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets how many frames may queue per client before new ones are
// dropped for that client.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithCheckOrigin sets the origin policy for websocket upgrades.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// Hub tracks connected clients and broadcasts frames to them. It implements
// notify.Notifier.
type Hub struct {
	source   ViewSource
	upgrader websocket.Upgrader
	buffer   int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

var _ notify.Notifier = (*Hub)(nil)

// NewHub creates a Hub serving views from source.
func NewHub(source ViewSource, opts ...Option) *Hub {
	h := &Hub{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		buffer:  defaultBuffer,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Success(message string) { h.notify(notify.KindSuccess, message) }
func (h *Hub) Error(message string)   { h.notify(notify.KindError, message) }
func (h *Hub) Info(message string)    { h.notify(notify.KindInfo, message) }

func (h *Hub) notify(kind notify.Kind, message string) {
	n := notify.Notification{Kind: kind, Message: message, At: time.Now()}
	h.broadcast(Frame{Type: FrameNotification, Notification: &n})
}

// PublishView sends the current view to every client.
func (h *Hub) PublishView() {
	view := h.source.View()
	h.broadcast(Frame{Type: FrameView, View: &view})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.closed = true
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, h.buffer)
	view := h.source.View()
	data, err := encodeFrame(Frame{Type: FrameView, View: &view})
	if err != nil {
		slog.Error("Failed to encode initial view", "error", err)
		c.close()
		return
	}
	c.offer(data)

	if !h.register(c) {
		c.close()
		return
	}
	slog.Info("Feed client connected", "remote", r.RemoteAddr)

	go c.writeLoop()
	c.readLoop()

	h.unregister(c)
	c.close()
	slog.Info("Feed client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) broadcast(f Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		slog.Error("Failed to encode frame", "type", f.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.offer(data) {
			slog.Warn("Feed client too slow, frame dropped", "type", f.Type)
		}
	}
}

func encodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// offer queues data without blocking. It reports false if the frame was dropped.
func (c *client) offer(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readLoop discards client messages and returns when the connection ends.
func (c *client) readLoop() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Feed read failed", "error", err)
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("Feed write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
