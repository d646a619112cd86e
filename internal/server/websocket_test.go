package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/devserve/internal/watcher"
)

func dialUpdates(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/@devserve/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) UpdateMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var message UpdateMessage
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runWebSocketHub(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	first := dialUpdates(t, ts)
	defer first.Close(websocket.StatusNormalClosure, "")
	second := dialUpdates(t, ts)
	defer second.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return s.ClientCount() == 2
	}, 3*time.Second, 10*time.Millisecond)

	events := []watcher.ChangeEvent{{
		Type: watcher.EventTypeModified,
		Path: filepath.Join(root, "src", "main.ts"),
	}}
	require.NoError(t, s.handleFileChanges(events))

	for _, conn := range []*websocket.Conn{first, second} {
		message := readUpdate(t, conn)
		assert.Equal(t, "update", message.Type)
		assert.Equal(t, "/src/main.ts", message.Path)
		assert.Positive(t, message.Timestamp)
	}
}

func TestRapidChangesProduceIncreasingTimestamps(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runWebSocketHub(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialUpdates(t, ts)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return s.ClientCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	event := watcher.ChangeEvent{
		Type: watcher.EventTypeModified,
		Path: filepath.Join(root, "main.ts"),
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, s.handleFileChanges([]watcher.ChangeEvent{event}))
	}

	var last int64
	for i := 0; i < 5; i++ {
		message := readUpdate(t, conn)
		assert.Equal(t, "/main.ts", message.Path)
		assert.Greater(t, message.Timestamp, last)
		last = message.Timestamp
	}
}

func TestChangeInvalidatesRegistryBeforeBroadcast(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"main.ts": "export const x = 1;\n"})
	s := newTestServer(t, root, nil)

	// Populate the registry via a request.
	rec := get(t, s.Handler(), "/main.ts")
	require.Equal(t, 200, rec.Code)
	_, ok := s.Registry().Get("/main.ts")
	require.True(t, ok)

	require.NoError(t, s.handleFileChanges([]watcher.ChangeEvent{{
		Type: watcher.EventTypeModified,
		Path: filepath.Join(root, "main.ts"),
	}}))

	_, ok = s.Registry().Get("/main.ts")
	assert.False(t, ok)
}

func TestChangesOutsideRootAreDropped(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root, nil)

	require.NoError(t, s.handleFileChanges([]watcher.ChangeEvent{{
		Type: watcher.EventTypeModified,
		Path: filepath.Join(filepath.Dir(root), "elsewhere.ts"),
	}}))

	select {
	case message := <-s.broadcast:
		t.Fatalf("unexpected broadcast: %s", message)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectionsAfterHubStopAreClosed(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.runWebSocketHub(ctx)
	cancel()
	<-s.hubDone

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// With the hub gone, an incoming connection is turned away instead of
	// blocking the handler on the register channel.
	conn := dialUpdates(t, ts)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()
	_, _, err := conn.Read(readCtx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root, nil)

	req := httptest.NewRequest("GET", "/@devserve/ws", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 403, rec.Code)
}
