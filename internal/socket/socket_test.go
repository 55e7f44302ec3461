package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/logging"
	"stagehand/internal/replicant"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(logging.NewNop())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func request(t *testing.T, ws *websocket.Conn, event, id string, data any) Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Event: event, ID: id, Data: raw}))
	return readFrame(t, ws)
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame Frame
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func TestRequestIsAcknowledged(t *testing.T) {
	hub, url := startHub(t)
	hub.Handle("echo", func(_ context.Context, c *Conn, data json.RawMessage) (any, error) {
		var in map[string]string
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return map[string]string{"got": in["say"], "ip": c.RemoteIP()}, nil
	})
	hub.Handle("fail", func(context.Context, *Conn, json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	})

	ws := dial(t, url)

	ack := request(t, ws, "echo", "1", map[string]string{"say": "hi"})
	assert.Equal(t, EventAck, ack.Event)
	assert.Equal(t, "1", ack.ID)
	var out map[string]string
	require.NoError(t, json.Unmarshal(ack.Data, &out))
	assert.Equal(t, "hi", out["got"])
	assert.Equal(t, "127.0.0.1", out["ip"])

	ack = request(t, ws, "fail", "2", nil)
	assert.Equal(t, "2", ack.ID)
	assert.Equal(t, "nope", ack.Error)

	ack = request(t, ws, "missing", "3", nil)
	assert.Contains(t, ack.Error, "unknown event")
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 5*time.Second, 10*time.Millisecond)

	hub.Broadcast("graphic:occupied", map[string]string{"pathName": "/x"})

	for _, ws := range []*websocket.Conn{a, b} {
		frame := readFrame(t, ws)
		assert.Equal(t, "graphic:occupied", frame.Event)
		assert.JSONEq(t, `{"pathName":"/x"}`, string(frame.Data))
	}
}

func TestDisconnectListenersRun(t *testing.T) {
	hub, url := startHub(t)
	var (
		mu   sync.Mutex
		gone []string
	)
	hub.OnDisconnect(func(c *Conn) {
		mu.Lock()
		defer mu.Unlock()
		gone = append(gone, c.ID())
	})

	ws := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)
	var id string
	for _, c := range hub.snapshot() {
		id = c.ID()
	}
	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gone) == 1 && gone[0] == id
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Count())
	_, ok := hub.Conn(id)
	assert.False(t, ok)
}

func TestReplicantBridge(t *testing.T) {
	hub, url := startHub(t)
	reg := replicant.NewRegistry(nil, logging.NewNop())
	rep, err := replicant.Declare(reg, "scores", "acme", replicant.Options[int]{DefaultValue: []int{1}})
	require.NoError(t, err)
	stop := BindReplicants(hub, reg)
	defer stop()

	ws := dial(t, url)
	ack := request(t, ws, EventReplicantRead, "r1", ReadRequest{Name: "scores", Namespace: "acme"})
	require.Empty(t, ack.Error)
	var read ReadResponse
	require.NoError(t, json.Unmarshal(ack.Data, &read))
	assert.JSONEq(t, `[1]`, string(read.Value))

	ack = request(t, ws, EventReplicantRead, "r2", ReadRequest{Name: "nope", Namespace: "acme"})
	assert.Contains(t, ack.Error, "not declared")

	require.NoError(t, rep.Push(2))
	frame := readFrame(t, ws)
	assert.Equal(t, EventReplicantOperations, frame.Event)
	var env replicant.Envelope
	require.NoError(t, json.Unmarshal(frame.Data, &env))
	assert.Equal(t, "scores", env.Name)
	assert.Equal(t, "acme", env.Namespace)
	assert.JSONEq(t, `[{"method":"push","items":[2]}]`, string(env.Operations))
}
