package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-site websocket hijacking: only the console's own pages may
	// open the patch stream.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// wsClient is one browser tab listening for patches.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the patches of one workspace out to its open tabs.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	logger  *logging.Logger
	metrics *metrics.Registry
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, reg *metrics.Registry) *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		logger:  logger,
		metrics: reg,
	}
}

// Publish sends p to every connected tab. It never blocks: a tab whose
// buffer is full misses the patch.
func (h *Hub) Publish(p console.Patch) {
	msg, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("encode patch", "error", err)
		return
	}
	h.metrics.PatchesTotal.WithLabelValues(string(p.Op)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("patch dropped, client too slow")
		}
	}
}

// Len returns the number of connected tabs.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams patches until the tab goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 256)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.metrics.WSConns.Inc()

	go c.writePump()
	c.readPump(h)
}

// Close disconnects every tab.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.WSConns.Dec()
}

// readPump discards incoming frames; it only notices when the tab closes.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends messages to the client
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
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
