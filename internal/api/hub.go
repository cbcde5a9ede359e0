package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
)

// Hub fans snapshots out to websocket clients. Slow clients only ever see
// the latest snapshot; older ones are dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*socketClient]struct{}
	last    []byte
	closed  bool

	upgrader websocket.Upgrader
	log      log.Logger
}

type socketClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger log.Logger) *Hub {
	return &Hub{
		clients: make(map[*socketClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger,
	}
}

// Broadcast sends snap to every connected client and keeps it for clients
// that connect later.
func (h *Hub) Broadcast(snap model.VehicleSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.log.Error(err, "marshal snapshot", "vin", snap.VIN)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	for c := range h.clients {
		c.offer(data)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*socketClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		_ = c.conn.Close()
	}
}

// offer replaces a pending message with data. Callers hold the hub lock, so
// there is a single sender.
func (c *socketClient) offer(data []byte) {
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &socketClient{
		conn: conn,
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	h.log.Debug("websocket client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *socketClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.offer(h.last)
	}
	return true
}

func (h *Hub) unregister(c *socketClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *socketClient) {
	defer func() {
		h.unregister(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.log.Debug("websocket client closed", "error", err)
			return
		}
	}
}

func (h *Hub) writePump(c *socketClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *socketClient) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}
