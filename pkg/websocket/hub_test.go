package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig(zaptest.NewLogger(t))
	cfg.PingInterval = 50 * time.Millisecond
	hub := New(cfg)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_BroadcastReachesEverySubscriber(t *testing.T) {
	hub, srv := newTestHub(t)
	t.Cleanup(hub.Close)

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Broadcast(map[string]interface{}{"cycle": 1, "slippage": "0.001"}))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"cycle":1,"slippage":"0.001"}`, string(msg))
	}
}

func TestHub_SubscriberDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)
	t.Cleanup(hub.Close)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)

	assert.NoError(t, hub.Broadcast("nobody listening"))
}

func TestHub_Close(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	assert.ErrorIs(t, hub.Broadcast("late"), ErrHubClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// second close is a no-op
	hub.Close()
}

func TestHub_BroadcastUnencodable(t *testing.T) {
	hub := New(DefaultConfig(zaptest.NewLogger(t)))
	defer hub.Close()

	err := hub.Broadcast(make(chan int))
	assert.Error(t, err)
}
