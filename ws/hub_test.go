package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pillarworks/storefront/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeValidator map[string]*models.TokenClaims

func (f fakeValidator) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	if c, ok := f[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type frame struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  int64           `json:"seq"`
}

func startHub(t *testing.T, validator TokenValidator) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, validator, nil).HandleConnection))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ready := read(t, conn)
	require.Equal(t, OpReady, ready.Op)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestAnonymousClientReceivesBroadcasts(t *testing.T) {
	hub, srv := startHub(t, fakeValidator{})
	conn := dial(t, srv, "")

	hub.BroadcastToAll(Event{Op: OpContentUpdate, Data: ContentUpdateData{Key: "home"}})

	got := read(t, conn)
	assert.Equal(t, OpContentUpdate, got.Op)
	assert.JSONEq(t, `{"key":"home"}`, string(got.Data))
	assert.Positive(t, got.Seq)
}

func TestPermittedBroadcastSkipsAnonymous(t *testing.T) {
	hub, srv := startHub(t, fakeValidator{
		"admin": {UserID: "u1", Permissions: models.PermManageOrders},
	})
	anon := dial(t, srv, "")
	admin := dial(t, srv, "admin")

	hub.BroadcastToPermitted(models.PermManageOrders, Event{Op: OpOrderUpdate, Data: OrderUpdateData{OrderID: "o1"}})
	hub.BroadcastToAll(Event{Op: OpFaqUpdate, Data: FaqUpdateData{Action: "create", ID: 1}})

	assert.Equal(t, OpOrderUpdate, read(t, admin).Op)
	assert.Equal(t, OpFaqUpdate, read(t, admin).Op)

	// The anonymous socket sees the public event first: the order event was never queued for it.
	assert.Equal(t, OpFaqUpdate, read(t, anon).Op)
}

func TestInvalidTokenRejected(t *testing.T) {
	_, srv := startHub(t, fakeValidator{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHeartbeatAck(t *testing.T) {
	_, srv := startHub(t, fakeValidator{})
	conn := dial(t, srv, "")

	require.NoError(t, conn.WriteJSON(map[string]string{"op": OpHeartbeat}))
	assert.Equal(t, OpHeartbeatAck, read(t, conn).Op)
}

func TestThemePreviewRelayedToOthers(t *testing.T) {
	hub, srv := startHub(t, fakeValidator{
		"designer": {UserID: "u1", Permissions: models.PermManageTheme},
		"editor":   {UserID: "u2", Permissions: models.PermManageContent},
	})
	hub.OnThemePreview(func(raw json.RawMessage) (ThemeData, error) {
		return ThemeData{Variables: map[string]string{"--color-primary": "#112233"}}, nil
	})

	designer := dial(t, srv, "designer")
	editor := dial(t, srv, "editor")
	viewer := dial(t, srv, "")

	// Without ManageTheme the sender gets an error frame.
	require.NoError(t, editor.WriteJSON(map[string]any{"op": OpThemePreview, "d": map[string]any{}}))
	assert.Equal(t, OpError, read(t, editor).Op)

	require.NoError(t, designer.WriteJSON(map[string]any{"op": OpThemePreview, "d": map[string]any{"colors": map[string]string{"primary": "#112233"}}}))

	got := read(t, viewer)
	require.Equal(t, OpThemePreview, got.Op)
	var data ThemeData
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.True(t, data.Preview)
	assert.Equal(t, "#112233", data.Variables["--color-primary"])
}

func TestShutdownClosesConnections(t *testing.T) {
	hub, srv := startHub(t, fakeValidator{})
	conn := dial(t, srv, "")
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ConnectionCount())
}

func TestSendAfterRemovalIsDropped(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	hub.addClient(c)
	require.Len(t, c.send, 1) // ready frame

	hub.removeClient(c)
	assert.NotPanics(t, func() { c.sendEvent(Event{Op: OpHeartbeatAck}) })
	assert.NotPanics(t, func() { hub.removeClient(c) })

	var frames []string
	for msg := range c.send {
		frames = append(frames, string(msg))
	}
	assert.Len(t, frames, 1)
}

func TestSendDuringShutdownIsDropped(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	hub.addClient(c)

	hub.Shutdown()
	assert.NotPanics(t, func() {
		c.sendEvent(Event{Op: OpError, Data: ErrorData{Op: OpThemePreview, Message: "forbidden"}})
	})
	assert.NotPanics(t, func() { hub.BroadcastToAll(Event{Op: OpContentUpdate}) })
	assert.Zero(t, hub.ConnectionCount())
}
