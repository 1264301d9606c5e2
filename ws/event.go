// Package ws pushes live updates to browsers over WebSocket.
//
// Storefront visitors connect anonymously and receive content, catalog, FAQ
// and theme changes as soon as an admin saves them. Dashboard users connect
// with their access token; those holding ManageTheme may also send
// theme_preview events that are relayed to everyone else without being
// persisted.
//
// Event flow:
//  1. An admin saves a section → HTTP PUT → service → database
//  2. The service calls EventPublisher.BroadcastToAll
//  3. The hub queues the encoded event on every client's send channel
//  4. Each client's WritePump writes it to the socket
package ws

// Event is one frame on the socket. Seq increases with every outbound event
// so a client can detect that it missed something and refetch.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server
const (
	OpHeartbeat    = "heartbeat"
	OpThemePreview = "theme_preview"
)

// Server → Client
const (
	OpReady         = "ready"
	OpHeartbeatAck  = "heartbeat_ack"
	OpError         = "error"
	OpContentUpdate = "content_update"
	OpCatalogUpdate = "catalog_update"
	OpFaqUpdate     = "faq_update"
	OpThemeUpdate   = "theme_update"
	OpOrderUpdate   = "order_update"
)

// ReadyData is sent once the connection is registered.
type ReadyData struct {
	Authenticated bool  `json:"authenticated"`
	Permissions   int64 `json:"permissions"`
}

// ContentUpdateData names the section that changed.
type ContentUpdateData struct {
	Key string `json:"key"`
}

// CatalogUpdateData describes a pillar or service change.
type CatalogUpdateData struct {
	Entity string `json:"entity"` // "pillar" | "service"
	Action string `json:"action"` // "create" | "update" | "delete"
	ID     int64  `json:"id"`
}

// FaqUpdateData describes a FAQ change.
type FaqUpdateData struct {
	Action string `json:"action"`
	ID     int64  `json:"id"`
}

// ThemeData carries the CSS variables of a saved or previewed theme.
type ThemeData struct {
	Variables map[string]string `json:"variables"`
	CSS       string            `json:"css"`
	Preview   bool              `json:"preview,omitempty"`
}

// OrderUpdateData is sent to dashboard users that manage orders.
type OrderUpdateData struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number,omitempty"`
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
}

// ErrorData is returned to the sender of a rejected client event.
type ErrorData struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}
