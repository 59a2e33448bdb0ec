// Package stream pushes probe results to browsers over a websocket.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/hamed0406/webping/internal/domain"
)

// MessageProbe tags a probe result frame.
const MessageProbe = "probe"

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans every broadcast out to connected clients. Slow clients are
// dropped rather than allowed to hold up the rest.
type Hub struct {
	log            *zap.Logger
	allowedOrigins []string

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log *zap.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:            log,
		allowedOrigins: allowedOrigins,
		broadcast:      make(chan []byte, 256),
		register:       make(chan *client),
		unregister:     make(chan *client),
		done:           make(chan struct{}),
		clients:        make(map[*client]struct{}),
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Info("ws_client_connected", zap.String("client", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("ws_client_disconnected", zap.String("client", c.id))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("ws_client_too_slow", zap.String("client", c.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a typed frame for every client. The frame is dropped when
// the queue is full.
func (h *Hub) Broadcast(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Message{Type: msgType, Payload: raw})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- frame:
	default:
		h.log.Warn("ws_broadcast_dropped", zap.String("type", msgType))
	}
	return nil
}

// ObserveResult forwards a probe result to every client.
func (h *Hub) ObserveResult(r domain.ProbeResult) {
	if err := h.Broadcast(MessageProbe, r); err != nil {
		h.log.Warn("ws_encode_failed", zap.String("url", r.URL), zap.Error(err))
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.log.Warn("ws_upgrade_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{id: r.RemoteAddr, conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
			default:
				h.log.Debug("ws_read_error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("ws_bad_message", zap.String("client", c.id), zap.Error(err))
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(Message{Type: "pong", Payload: json.RawMessage(`{}`)})
			if err := c.conn.Write(ctx, websocket.MessageText, pong); err != nil {
				return
			}
		}
	}
}

func (h *Hub) writePump(c *client) {
	ctx := context.Background()
	for msg := range c.send {
		if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
			default:
				h.log.Debug("ws_write_error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
	// Hub closed our queue: tell the peer.
	c.conn.Close(websocket.StatusGoingAway, "")
}
