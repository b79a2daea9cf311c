package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"student-risk-monitor/internal/metrics"
	"student-risk-monitor/internal/model"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// writeTimeout is the deadline for a single write to a subscriber.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-subscriber outgoing buffer depth.
	sendBufSize = 32

	// replayLimit caps how many recent active alerts a new subscriber
	// receives on connect.
	replayLimit = 10
)

// AlertSource supplies the recent active alerts replayed to new
// subscribers. Implemented by the alert store.
type AlertSource interface {
	RecentActive(limit int) []model.Alert
}

// AcknowledgeFunc handles acknowledge_alert messages sent by subscribers.
type AcknowledgeFunc func(alertID, userID string) bool

// inboundMessage is what subscribers may send over the socket.
type inboundMessage struct {
	Type    string `json:"type"`
	AlertID string `json:"alert_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Hub tracks live subscriber connections and broadcasts alert messages to
// all of them. A slow or dead subscriber is pruned instead of stalling
// delivery to the rest.
type Hub struct {
	source   AlertSource
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	ackMu sync.RWMutex
	ackFn AcknowledgeFunc

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn

	// mu guards send and closed so no goroutine can write to send after
	// close retires it. Broadcast runs from many request goroutines while
	// disconnects close clients concurrently.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewHub creates a hub replaying from source.
func NewHub(source AlertSource, m *metrics.Metrics, logger *logrus.Logger) *Hub {
	return &Hub{
		source:  source,
		metrics: m,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin policy belongs to the reverse proxy in front of us.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetAcknowledgeFunc wires the handler for subscriber acknowledge_alert
// messages. Called once during startup wiring.
func (h *Hub) SetAcknowledgeFunc(fn AcknowledgeFunc) {
	h.ackMu.Lock()
	h.ackFn = fn
	h.ackMu.Unlock()
}

// ServeHTTP upgrades the request to a websocket subscription. The new
// subscriber immediately receives a connection acknowledgement plus up to
// the ten most recent active alerts, then enters its receive loop. Blocks
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	h.logger.Infof("Subscriber connected from %s", r.RemoteAddr)

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer func() {
		h.unregister(c)
		h.logger.Debugf("Subscriber from %s disconnected", r.RemoteAddr)
	}()

	h.replay(c)

	go c.writePump()
	h.readPump(c)
}

// Broadcast queues payload for every live subscriber. A subscriber whose
// buffer is full is treated as dead and removed; the remaining subscribers
// still receive the message.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.queue(payload) {
			h.logger.Warnf("Subscriber not keeping up, dropping connection")
			h.unregister(c)
		}
	}
}

// Count returns the number of live subscriber connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.ActiveConnections.Set(float64(n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.metrics.ActiveConnections.Set(float64(n))
}

// replay queues the connection acknowledgement and the recent active alerts
// for a new subscriber.
func (h *Hub) replay(c *client) {
	ack, err := json.Marshal(map[string]string{
		"type":    model.MsgConnectionEstablished,
		"message": "Connected to student risk alert stream",
	})
	if err == nil {
		c.queue(ack)
	}

	for _, alert := range h.source.RecentActive(replayLimit) {
		a := alert
		payload, err := model.EncodeAlertMessage(&a)
		if err != nil {
			h.logger.Errorf("Failed to encode replay alert %s: %v", alert.ID, err)
			continue
		}
		c.queue(payload)
	}
}

// readPump consumes frames from the subscriber: acknowledge_alert messages
// are forwarded to the acknowledge handler, ping messages get a pong reply,
// anything else is ignored. Blocks until the connection closes.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Debugf("Ignoring malformed subscriber message: %v", err)
			continue
		}

		switch msg.Type {
		case "acknowledge_alert":
			h.ackMu.RLock()
			fn := h.ackFn
			h.ackMu.RUnlock()
			if fn != nil && msg.AlertID != "" {
				if !fn(msg.AlertID, msg.UserID) {
					h.logger.Warnf("Subscriber acknowledged unknown alert %s", msg.AlertID)
				}
			}
		case "ping":
			if pong, err := json.Marshal(map[string]string{"type": model.MsgPong}); err == nil {
				c.queue(pong)
			}
		}
	}
}

// queue enqueues payload without blocking. It reports false when the
// buffer is full or the client has been closed.
func (c *client) queue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close retires the send channel exactly once. Safe to call from any
// goroutine; queue refuses writes afterwards.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the subscriber's send channel onto the connection and
// sends periodic pings. Runs in its own goroutine per subscriber.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
