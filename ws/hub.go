package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
)

// EventPublisher is what services depend on to broadcast, so they can be
// tested with a recorder instead of a running hub.
type EventPublisher interface {
	BroadcastToAll(event Event)
	BroadcastToPermitted(perm models.Permission, event Event)
	ConnectionCount() int
}

// ThemePreviewFunc turns a submitted partial theme into the CSS variables to
// relay. It is wired to the theme service in main.
type ThemePreviewFunc func(raw json.RawMessage) (ThemeData, error)

// Hub tracks every open connection. Registration goes through channels
// consumed by Run; broadcasts take the read lock and never block on a slow
// client, which is dropped instead.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	seq atomic.Int64

	onThemePreview ThemePreviewFunc

	log *zap.Logger
}

// NewHub, constructor.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        zap.L().Named("ws"),
	}
}

// OnThemePreview installs the preview callback. Without it theme_preview
// events are rejected.
func (h *Hub) OnThemePreview(fn ThemePreviewFunc) {
	h.onThemePreview = fn
}

// Run is the hub's event loop; main starts it with `go hub.Run()`. It returns
// after Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	client.sendEvent(Event{
		Op: OpReady,
		Data: ReadyData{
			Authenticated: client.userID != "",
			Permissions:   int64(client.perms),
		},
	})

	h.log.Debug("client connected",
		zap.String("user_id", client.userID), zap.Int("connections", total))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
		h.log.Debug("client disconnected",
			zap.String("user_id", client.userID), zap.Int("connections", len(h.clients)))
	}
}

// enqueueRegister and enqueueUnregister give up once the hub is shut down,
// so pumps never block on a loop that is gone.
func (h *Hub) enqueueRegister(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) enqueueUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastToAll sends event to every connection, anonymous ones included.
func (h *Hub) BroadcastToAll(event Event) {
	h.broadcast(event, func(*Client) bool { return true })
}

// BroadcastToPermitted sends event only to authenticated connections holding perm.
func (h *Hub) BroadcastToPermitted(perm models.Permission, event Event) {
	h.broadcast(event, func(c *Client) bool {
		return c.userID != "" && c.perms.Has(perm)
	})
}

// broadcastExcept relays a client's event to everyone else.
func (h *Hub) broadcastExcept(sender *Client, event Event) {
	h.broadcast(event, func(c *Client) bool { return c != sender })
}

func (h *Hub) broadcast(event Event, match func(*Client) bool) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal broadcast event", zap.String("op", event.Op), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		if !client.trySend(data) {
			// Buffer full: the client is too slow, drop it.
			go h.enqueueUnregister(client)
		}
	}
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown stops Run and closes every connection.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			client.closeSend()
		}
		h.clients = make(map[*Client]bool)
		h.log.Info("hub shut down, all connections closed")
	})
}
