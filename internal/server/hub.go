package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"TradeVision/internal/metrics"
	"TradeVision/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// DatasetEvent is pushed to websocket clients whenever a dataset is published.
type DatasetEvent struct {
	Type     string          `json:"type"`
	Symbol   string          `json:"symbol"`
	Source   string          `json:"source"`
	Points   int             `json:"points"`
	LoadedAt time.Time       `json:"loadedAt"`
	Stats    model.LoadStats `json:"stats"`
	Error    string          `json:"error,omitempty"`
}

// NewDatasetEvent describes ds without its points.
func NewDatasetEvent(ds *model.Dataset) DatasetEvent {
	return DatasetEvent{
		Type:     "dataset",
		Symbol:   ds.Symbol,
		Source:   ds.Source,
		Points:   len(ds.Points),
		LoadedAt: ds.LoadedAt,
		Stats:    ds.Stats,
		Error:    ds.Error,
	}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans dataset events out to websocket clients. New clients receive the
// latest event immediately.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	latest  []byte
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(r *http.Request) bool { return true },
			EnableCompression: true,
		},
		metrics: m,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// PublishDataset broadcasts a dataset event.
func (h *Hub) PublishDataset(ds *model.Dataset) {
	msg, err := json.Marshal(NewDatasetEvent(ds))
	if err != nil {
		h.logger.Error("encode dataset event", zap.Error(err))
		return
	}
	h.Broadcast(msg)
}

// Broadcast queues msg for every client. Clients whose buffer is full are dropped.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow websocket client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer), hub: h}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	n := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.SetWSClients(n)
	h.logger.Debug("ws client connected", zap.Int("clients", n))

	go c.writePump()
	go c.readPump()
}

// Run blocks until ctx is cancelled, then disconnects every client and waits
// for their goroutines to exit.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.Close()
	return nil
}

// Close disconnects all clients. Later upgrades are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.SetWSClients(len(h.clients))
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		c.hub.wg.Done()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
