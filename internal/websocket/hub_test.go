package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/aria2d/internal/testutil"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(testutil.NewTestLogger(t))
	go hub.Run()
	t.Cleanup(hub.Stop)

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestHub_Broadcast(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast("stats:global", map[string]int{"numActive": 2}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type      string         `json:"type"`
		Payload   map[string]int `json:"payload"`
		Timestamp string         `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "stats:global", msg.Type)
	assert.Equal(t, 2, msg.Payload["numActive"])
	assert.NotEmpty(t, msg.Timestamp)
}

func TestHub_Unregister(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(testutil.NopLogger())

	// Run is not started, so the queue fills up.
	var err error
	for i := 0; i < 300 && err == nil; i++ {
		err = hub.Broadcast("stats:global", i)
	}
	assert.ErrorIs(t, err, ErrHubFull)
}

func TestHub_BroadcastUnencodable(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	assert.Error(t, hub.Broadcast("bad", make(chan int)))
}
