package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// WSMessage is the envelope for all WebSocket communication.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into an envelope of the given type.
func NewMessage(typ string, payload any) (WSMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{Type: typ, Payload: b}, nil
}

// Client is one WebSocket connection. ID is a per-connection session id.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan WSMessage
}

// MessageHandler processes inbound messages and connection teardown.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg WSMessage)
	HandleDisconnect(client *Client)
}

// Hub manages all WebSocket clients.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	handler      MessageHandler
	readLimit    int64
	pingInterval time.Duration
	metrics      *Metrics
	logger       *slog.Logger
}

func NewHub(readLimit int64, pingInterval time.Duration, metrics *Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		readLimit:    readLimit,
		pingInterval: pingInterval,
		metrics:      metrics,
		logger:       logger,
	}
}

// SetHandler sets the message handler (used to break circular init).
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("ws accept", "err", err)
		return
	}
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan WSMessage, 64),
	}

	h.register(client)
	defer h.unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(ctx, client)
	h.readPump(ctx, client)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.IncrWSConn()
	}
	h.logger.Info("client connected", "session", c.ID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if h.metrics != nil {
		h.metrics.DecrWSConn()
	}
	if h.handler != nil {
		h.handler.HandleDisconnect(c)
	}
	h.logger.Info("client disconnected", "session", c.ID)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("client send buffer full", "session", c.ID)
		}
	}
}

// SendTo sends a message to a specific client.
func (h *Hub) SendTo(session string, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[session]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client send buffer full", "session", c.ID)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readPump(ctx context.Context, c *Client) {
	defer func() {
		if err := c.conn.CloseNow(); err != nil {
			h.logger.Debug("close conn", "err", err)
		}
	}()
	for {
		var msg WSMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			return
		}
		if h.handler != nil {
			h.handler.HandleMessage(ctx, c, msg)
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *Client) {
	interval := h.pingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, c.conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
