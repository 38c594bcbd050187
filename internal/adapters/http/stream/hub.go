// Package stream fans scored batches out to WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/pkg/logger"
	"github.com/okian/icexg/pkg/metrics"
)

const (
	defaultSendBuffer = 64
	writeDeadline     = 5 * time.Second
	pongWait          = 30 * time.Second
	pingInterval      = 20 * time.Second
)

type client struct {
	gameID string // empty receives every game
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

// Hub fans out batches to connected clients. Clients subscribe to one game
// with ?game=<id>, or to every game without it.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	sendBuf  int
	logger   logger.Logger
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSendBuffer sets how many messages may queue for a slow client before
// new ones are dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuf = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		sendBuf: defaultSendBuffer,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish serializes the batch and enqueues it to matching clients without
// blocking. Slow clients lose messages.
func (h *Hub) Publish(ctx context.Context, batch model.Batch) {
	data, err := json.Marshal(batch)
	if err != nil {
		h.logger.Warn(ctx, "marshal batch", logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.gameID != "" && c.gameID != batch.GameID {
			continue
		}
		select {
		case c.send <- data:
			metrics.RecordStreamPublished()
		default:
			metrics.RecordStreamDropped()
			h.logger.Warn(ctx, "dropping batch for slow client", logger.String("game_id", batch.GameID))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID != "" && !model.ValidGameID(gameID) {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		gameID: gameID,
		conn:   conn,
		send:   make(chan []byte, h.sendBuf),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateStreamClients(n)
	h.logger.Info(r.Context(), "stream client connected", logger.String("game_id", gameID), logger.Int("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeDeadline))
		_ = c.conn.Close()
	}
}

// writePump owns the client lifecycle: on exit it removes the client so
// Publish never sends to a stale channel.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads pongs and close frames; clients send nothing else.
func (h *Hub) readPump(c *client) {
	defer close(c.done)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateStreamClients(n)
	h.logger.Info(context.Background(), "stream client disconnected", logger.String("game_id", c.gameID))
}
