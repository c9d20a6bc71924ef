package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"thread-go-home/internal/device"
	"thread-go-home/internal/hub"
)

const (
	wsSendBuffer   = 64
	wsEventBuffer  = 256
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

// WSHub fans hub events out to websocket clients. All membership changes
// go through Run; Count may be called from anywhere.
type WSHub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan hub.Event

	done     chan struct{}
	stopOnce sync.Once
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	// serial limits the client to one device's events; 0 means all.
	serial uint64
}

func (c *wsClient) wants(ev hub.Event) bool {
	return c.serial == 0 || c.serial == ev.Serial
}

// writeLoop drains send until the hub closes it or a write fails.
func (c *wsClient) writeLoop() {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	c.conn.Close(websocket.StatusNormalClosure, "")
}

// NewWSHub creates a hub; call Run to start it.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan hub.Event, wsEventBuffer),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until Stop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case ev := <-h.broadcast:
			h.fanout(ev)
		}
	}
}

func (h *WSHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client connected", "serial", c.serial, "total", n)
}

func (h *WSHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client disconnected", "total", n)
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// fanout queues ev for every interested client. A client whose buffer is
// full is dropped rather than allowed to stall the others.
func (h *WSHub) fanout(ev hub.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("ws marshal", "type", ev.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("ws client evicted (too slow)", "serial", c.serial)
		}
	}
}

// Stop shuts the hub down. Safe to call more than once.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues an event without blocking; it is dropped when the
// queue is full.
func (h *WSHub) Broadcast(ev hub.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("ws broadcast queue full, dropping event", "type", ev.Type)
	}
}

// Count returns the number of connected clients.
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWS upgrades to a websocket that streams hub events as JSON.
// The optional serial query parameter limits the stream to one device.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var serial uint64
	if q := r.URL.Query().Get("serial"); q != "" {
		v, err := device.ParseSerial(q)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		serial = v
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.allowedOrigins})
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer), serial: serial}
	select {
	case s.wsHub.register <- c:
	case <-s.wsHub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go c.writeLoop()
	s.wsReadLoop(c)
}

// wsReadLoop blocks until the client goes away or the hub stops, then
// unregisters it. Clients only listen; reads just notice the close.
func (s *Server) wsReadLoop(c *wsClient) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			break
		}
	}

	select {
	case s.wsHub.unregister <- c:
	case <-s.wsHub.done:
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
	}
}
