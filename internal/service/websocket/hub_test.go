package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"yoloview/internal/dto"
	"yoloview/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()
	hub := NewHubService(logger.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.GetClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishFrameReachesViewers(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.PublishFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg dto.ViewerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "frame", msg.Type)
		raw, err := base64.StdEncoding.DecodeString(msg.Image)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, raw)
	}
}

func TestHub_PublishState(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.PublishState(dto.SessionState{CameraAvailable: true, Streaming: true, State: "streaming"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg dto.ViewerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	require.NotNil(t, msg.State)
	assert.True(t, msg.State.Streaming)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHubService(logger.New(io.Discard))

	// No Run loop: the buffer fills and further messages are dropped.
	for i := 0; i < broadcastBuffer; i++ {
		assert.True(t, hub.Broadcast([]byte("x")))
	}
	assert.False(t, hub.Broadcast([]byte("x")))
}

func TestHub_StateSurvivesFullFrameQueue(t *testing.T) {
	hub := NewHubService(logger.New(io.Discard))

	for i := 0; i < broadcastBuffer; i++ {
		hub.PublishFrame([]byte{0xFF})
	}
	hub.PublishState(dto.SessionState{Streaming: true, State: "streaming"})
	hub.PublishState(dto.SessionState{State: "idle"})

	require.Len(t, hub.state, 1)
	var msg dto.ViewerMessage
	require.NoError(t, json.Unmarshal(<-hub.state, &msg))
	assert.Equal(t, "state", msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, "idle", msg.State.State)
	assert.False(t, msg.State.Streaming)
}

func TestHub_StopStateReachesViewerBehindFrames(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	for i := 0; i < 3*broadcastBuffer; i++ {
		hub.PublishFrame([]byte{0xFF})
	}
	hub.PublishState(dto.SessionState{State: "idle"})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg dto.ViewerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "state" {
			require.NotNil(t, msg.State)
			assert.Equal(t, "idle", msg.State.State)
			return
		}
	}
}
