package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/franckalain/foodanalysis/internal/models"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotFunc returns the record to greet a new client with.
type SnapshotFunc func(ctx context.Context) (*models.AnalysisRecord, error)

// Hub fans records out to connected websocket clients. It serves /ws.
type Hub struct {
	clients  sync.Map // id -> *wsClient
	count    atomic.Int64
	snapshot SnapshotFunc
	logger   *slog.Logger
	onCount  func(n int64)
}

type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSnapshot makes the hub send the current record to each new client.
func WithSnapshot(fn SnapshotFunc) HubOption {
	return func(h *Hub) { h.snapshot = fn }
}

// WithClientGauge reports the connected client count after every change.
func WithClientGauge(fn func(n int64)) HubOption {
	return func(h *Hub) { h.onCount = fn }
}

func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Name() string {
	return "websocket"
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int64 {
	return h.count.Load()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	c := &wsClient{conn: conn}
	h.add(clientID, c)
	defer h.remove(clientID, c)

	h.logger.Debug("websocket client connected", "client_id", clientID)

	if h.snapshot != nil {
		if rec, err := h.snapshot(r.Context()); err == nil && rec != nil {
			if err := c.send(analysisMessage(rec)); err != nil {
				h.logger.Debug("failed to send snapshot", "client_id", clientID, "error", err)
				return
			}
		}
	}

	// Clients do not send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("websocket client disconnected", "client_id", clientID, "error", err)
			return
		}
	}
}

// Notify broadcasts record to every client. A client that cannot be written
// to is dropped; that is not an error for the caller.
func (h *Hub) Notify(_ context.Context, record *models.AnalysisRecord) error {
	msg := analysisMessage(record)
	h.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		if err := c.send(msg); err != nil {
			h.logger.Debug("dropping websocket client", "client_id", key, "error", err)
			h.remove(key.(string), c)
		}
		return true
	})
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.clients.Range(func(key, value any) bool {
		h.remove(key.(string), value.(*wsClient))
		return true
	})
	return nil
}

func (h *Hub) add(id string, c *wsClient) {
	h.clients.Store(id, c)
	h.report(h.count.Add(1))
}

func (h *Hub) remove(id string, c *wsClient) {
	if _, loaded := h.clients.LoadAndDelete(id); !loaded {
		return
	}
	c.conn.Close()
	h.report(h.count.Add(-1))
}

func (h *Hub) report(n int64) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
