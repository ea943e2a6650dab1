package websocket

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/device"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local apps and browser extensions connect from arbitrary origins
	},
}

// Client is one accepted websocket connection
type Client struct {
	id        uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	mu        sync.Mutex
	closed    bool
	ipAddress string
	device    string
}

// ID returns the registry key of the client
func (c *Client) ID() uuid.UUID {
	return c.id
}

// IPAddress returns the remote address of the client
func (c *Client) IPAddress() string {
	return c.ipAddress
}

// Ready reports whether the connection is still open for sending
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// SendRaw queues an encoded message without blocking. It returns false when
// the client is closed or its queue is full; the message is then dropped.
func (c *Client) SendRaw(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Send queues an envelope for the client
func (c *Client) Send(channel models.Channel, payload any) error {
	msg, err := EncodeEnvelope(channel, payload)
	if err != nil {
		return err
	}
	c.SendRaw(msg)
	return nil
}

// close marks the client closed and stops its write pump. Idempotent.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// EncodeEnvelope builds the wire form of an envelope
func EncodeEnvelope(channel models.Channel, payload any) ([]byte, error) {
	return json.Marshal(models.Envelope{Channel: channel, Payload: payload})
}

// HubHandlers contains the connection callbacks
type HubHandlers struct {
	// OnConnect runs once per client before it joins the registry, so
	// anything it sends precedes every broadcast to that client.
	OnConnect func(client *Client)
	// OnMessage runs on the client's read goroutine, one message at a time.
	OnMessage func(client *Client, data []byte)
	// OnDisconnect runs after the client left the registry.
	OnDisconnect func(client *Client)
}

// Hub is the registry of open connections
type Hub struct {
	clients  map[uuid.UUID]*Client
	mu       sync.RWMutex
	closed   bool
	handlers HubHandlers
	logger   log.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		logger:  logger,
	}
}

// SetHandlers sets the connection callbacks. Call before serving.
func (h *Hub) SetHandlers(handlers HubHandlers) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = handlers
}

// Count returns the number of registered clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Each calls fn for every registered client
func (h *Hub) Each(fn func(client *Client)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		fn(client)
	}
}

// Broadcast sends an envelope to every ready client and returns how many
// clients accepted it. Clients that are not ready are skipped.
func (h *Hub) Broadcast(channel models.Channel, payload any) (int, error) {
	msg, err := EncodeEnvelope(channel, payload)
	if err != nil {
		return 0, err
	}

	sent := 0
	h.Each(func(client *Client) {
		if client.SendRaw(msg) {
			sent++
		}
	})
	return sent, nil
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
		client.conn.Close()
	}
	level.Info(h.logger).Log("msg", "hub closed", "dropped_clients", len(clients))
}

// ServeHTTP upgrades the request to a websocket connection on any path
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ipAddress := getClientIP(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Warn(h.logger).Log("msg", "websocket upgrade failed", "ip", ipAddress, "err", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		id:        uuid.New(),
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		ipAddress: ipAddress,
		device:    device.GetFriendlyName(r.Header.Get("User-Agent")),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	if h.handlers.OnConnect != nil {
		h.handlers.OnConnect(client)
	}
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	level.Info(h.logger).Log("msg", "client connected", "id", client.id, "ip", ipAddress,
		"device", client.device, "clients", count)

	go client.writePump()
	go client.readPump()
}

// remove drops the client from the registry and closes it
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, wasConnected := h.clients[client.id]
	delete(h.clients, client.id)
	count := len(h.clients)
	onDisconnect := h.handlers.OnDisconnect
	h.mu.Unlock()

	client.close()
	client.conn.Close()

	// Call disconnect callback AFTER releasing lock to avoid deadlock
	if wasConnected {
		if onDisconnect != nil {
			onDisconnect(client)
		}
		level.Info(h.logger).Log("msg", "client disconnected", "id", client.id, "clients", count)
	}
}

// readPump pumps messages from the websocket to the message handler
func (c *Client) readPump() {
	defer c.hub.remove(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				level.Warn(c.hub.logger).Log("msg", "unexpected close", "id", c.id, "err", err)
			} else {
				level.Debug(c.hub.logger).Log("msg", "connection closed", "id", c.id, "err", err)
			}
			return
		}

		c.hub.mu.RLock()
		onMessage := c.hub.handlers.OnMessage
		c.hub.mu.RUnlock()
		if onMessage != nil {
			onMessage(c, data)
		}
	}
}

// writePump pumps queued messages to the websocket
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			level.Debug(c.hub.logger).Log("msg", "write failed", "id", c.id, "err", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// getClientIP extracts the real client IP from a request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (if behind proxy)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
