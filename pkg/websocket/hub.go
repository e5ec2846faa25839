package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Broadcast after Close.
var ErrHubClosed = errors.New("websocket hub closed")

// Hub fans JSON messages out to every connected subscriber.
// Subscribers are read-only: anything they send besides control frames is discarded.
type Hub struct {
	upgrader websocket.Upgrader
	config   Config
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Config holds hub configuration.
type Config struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MessageBufferSize int // per subscriber
	Logger            *zap.Logger
}

// DefaultConfig returns production defaults.
func DefaultConfig(logger *zap.Logger) Config {
	return Config{
		PingInterval:      10 * time.Second,
		PongTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Second,
		MessageBufferSize: 256,
		Logger:            logger,
	}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	started   time.Time
}

// New creates a hub.
func New(cfg Config) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		config:  cfg,
		logger:  cfg.Logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, h.config.MessageBufferSize),
		done:    make(chan struct{}),
		started: time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	ActiveConnections.Inc()
	h.logger.Info("websocket-subscriber-connected", zap.String("remote", r.RemoteAddr))

	go h.readLoop(c)
	go h.writeLoop(c)
}

// Broadcast encodes v once and queues it for every subscriber.
// A subscriber whose buffer is full misses the message.
func (h *Hub) Broadcast(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			MessagesDroppedTotal.WithLabelValues("buffer_full").Inc()
			h.logger.Warn("websocket-subscriber-lagging")
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and waits for their loops to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
	h.wg.Wait()

	h.logger.Info("websocket-hub-closed")
}

func (h *Hub) remove(c *client) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()

		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		ActiveConnections.Dec()
		ConnectionDuration.Observe(time.Since(c.started).Seconds())
	})
}

// readLoop keeps the read deadline moving on pongs and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket-subscriber-read-error", zap.Error(err))
			}
			return
		}
	}
}

// writeLoop drains the send buffer and sends periodic pings.
func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, msg)
			if err != nil {
				h.logger.Debug("websocket-write-error", zap.Error(err))
				return
			}
			MessagesSentTotal.Inc()
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				h.logger.Debug("ping-error", zap.Error(err))
				return
			}
		}
	}
}
