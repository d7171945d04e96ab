package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/streamcore/ttsqueue/internal/playback"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBuffer     = 128
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The panel is served from the overlay tool's own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans controller events out to websocket clients.
type Hub struct {
	logger *log.Logger
	status func() playback.Status

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	cancel  func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub subscribes to controller events until Close.
func NewHub(controller *playback.Controller, logger *log.Logger) *Hub {
	h := &Hub{
		logger:  logger,
		status:  controller.Status,
		clients: make(map[*client]struct{}),
	}
	h.cancel = controller.Subscribe(h.broadcast)
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops listening.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()

	h.cancel()
	for c := range clients {
		c.close()
	}
}

func (h *Hub) broadcast(ev playback.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("could not encode event", "type", ev.Type, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("event dropped for slow client", "type", ev.Type)
		}
	}
}

// Serve upgrades the request and streams events. The first message is the
// full status so a freshly opened panel does not wait for a change.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	initial, err := json.Marshal(struct {
		Type   string          `json:"type"`
		Status playback.Status `json:"status"`
	}{"status", h.status()})
	if err == nil {
		cl.send <- initial
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close() //nolint:errcheck
		return nil
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("panel connected", "remote", c.RealIP())

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	cl.close()
}

// readPump only handles control frames; panels never send data.
func (h *Hub) readPump(cl *client) {
	defer h.remove(cl)

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("panel read error", "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
