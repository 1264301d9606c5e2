package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
)

const (
	writeWait = 10 * time.Second

	// pongWait allows three missed 30s heartbeats.
	pongWait = 90 * time.Second

	// maxMessageSize fits a full theme preview payload.
	maxMessageSize = 8192

	sendBufferSize = 64
)

// Client is one WebSocket connection. userID is empty for anonymous
// storefront visitors.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	perms  models.Permission
	send   chan []byte
	mu     sync.Mutex // guards conn writes

	sendMu sync.Mutex // guards send and closed
	closed bool
}

// ReadPump reads client events until the connection fails, then unregisters.
// It runs on the HTTP handler goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.enqueueUnregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.log.Warn("failed to set read deadline", zap.Error(err))
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var event struct {
			Op   string          `json:"op"`
			Data json.RawMessage `json:"d"`
		}
		if err := json.Unmarshal(raw, &event); err != nil {
			c.hub.log.Debug("invalid message", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		c.handleEvent(event.Op, event.Data)
	}
}

func (c *Client) handleEvent(op string, data json.RawMessage) {
	switch op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpThemePreview:
		c.handleThemePreview(data)

	default:
		c.hub.log.Debug("unknown op", zap.String("user_id", c.userID), zap.String("op", op))
	}
}

// handleThemePreview relays an unsaved theme to every other connection.
func (c *Client) handleThemePreview(data json.RawMessage) {
	if c.userID == "" || !c.perms.Has(models.PermManageTheme) {
		c.sendEvent(Event{Op: OpError, Data: ErrorData{Op: OpThemePreview, Message: "forbidden"}})
		return
	}
	if c.hub.onThemePreview == nil {
		c.sendEvent(Event{Op: OpError, Data: ErrorData{Op: OpThemePreview, Message: "preview unavailable"}})
		return
	}

	preview, err := c.hub.onThemePreview(data)
	if err != nil {
		c.sendEvent(Event{Op: OpError, Data: ErrorData{Op: OpThemePreview, Message: err.Error()}})
		return
	}
	preview.Preview = true

	c.hub.broadcastExcept(c, Event{Op: OpThemePreview, Data: preview})
}

// sendEvent queues one event for this client only.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.hub.log.Error("failed to marshal event", zap.String("op", event.Op), zap.Error(err))
		return
	}

	if !c.trySend(data) {
		c.hub.log.Warn("send buffer full, dropping connection", zap.String("user_id", c.userID))
		go c.hub.enqueueUnregister(c)
	}
}

// trySend queues data without blocking and reports false only when the
// buffer is full. Data for a closed client is discarded.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend ends WritePump. It is safe to call more than once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump writes queued events until the hub closes the send channel.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.writeMessage(websocket.CloseMessage, nil)
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
