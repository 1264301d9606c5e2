package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
)

// TokenValidator is the slice of the auth service the handler needs. Defining
// it here keeps ws free of a services import (services imports ws).
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// Handler upgrades /ws requests.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	upgrader       websocket.Upgrader
}

// NewHandler, constructor. allowedOrigins is the CORS origin list; an empty
// list accepts any origin.
func NewHandler(hub *Hub, tokenValidator TokenValidator, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				if allowed[origin] {
					return true
				}
				// Same-host pages (the API serving its own admin) are fine.
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// HandleConnection upgrades the request and registers the client.
//
// A token is optional: browsers cannot set headers on a WebSocket handshake,
// so dashboards pass it as ?token= or rely on the access_token cookie.
// Without one the connection is an anonymous subscriber. A token that is
// present but invalid is rejected.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if c, err := r.Cookie("access_token"); err == nil {
			token = c.Value
		}
	}

	var claims *models.TokenClaims
	if token != "" {
		var err error
		claims, err = h.tokenValidator.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if claims != nil {
		client.userID = claims.UserID
		client.perms = claims.Permissions
	}

	if !h.hub.enqueueRegister(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}
