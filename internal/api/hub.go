package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/presentation"
)

const (
	sendChSize = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// ControlMessage is what websocket clients send to operate the robot.
type ControlMessage struct {
	Command string `json:"command"`
}

// Hub streams updates to every connected websocket client and accepts
// control commands from them.
type Hub struct {
	submit   func(message.Control)
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. Controls received from clients go to submit.
func NewHub(submit func(message.Control), logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		submit:   submit,
		logger:   logger.With("component", "api.ws"),
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// Publish sends env to every client. Slow clients drop messages.
func (h *Hub) Publish(env presentation.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to encode update", "type", env.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.send(data)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := newClient(conn, h.logger.With("remote", r.RemoteAddr))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("WebSocket client connected", "remote", r.RemoteAddr)

	go c.writeLoop()
	c.readLoop(h.handle)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	h.logger.Info("WebSocket client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) handle(c *client, raw []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendEnvelope(errorEnvelope("invalid message: " + err.Error()))
		return
	}
	ctl, err := message.ParseControl(msg.Command)
	if err != nil {
		c.sendEnvelope(errorEnvelope(err.Error()))
		return
	}
	h.submit(ctl)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func errorEnvelope(text string) presentation.Envelope {
	return presentation.Encode(message.Error{Text: text}, time.Now())
}

// client owns one websocket connection with a single write goroutine.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(conn *ws.Conn, logger *slog.Logger) *client {
	return &client{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *client) send(data []byte) {
	select {
	case c.sendCh <- data:
	case <-c.done:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

func (c *client) sendEnvelope(env presentation.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.send(data)
}

// writeLoop drains sendCh and keeps the connection alive with pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// readLoop hands every text message to handle until the connection fails.
func (c *client) readLoop(handle func(*client, []byte)) {
	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					c.logger.Warn("WebSocket read error", "error", err)
				}
			}
			return
		}
		handle(c, raw)
	}
}

// close sends a close frame and shuts the connection down once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
	})
}
