package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/room"
)

const eventTimeout = time.Second

// startTestHub runs a hub over a fresh registry and stops it when the test ends.
func startTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(room.NewCoordinator(room.NewStore(0)))
	go h.Run()
	t.Cleanup(func() {
		require.NoError(t, h.Shutdown(time.Second))
	})
	return h
}

// connectTestClient registers a client without a socket; its frames are read
// straight from the send channel.
func connectTestClient(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(nil, h, "test", nil)
	require.True(t, h.Register(c))
	return c
}

func submitIntent(h *Hub, c *Client, in Intent) {
	h.submit(request{client: c, intent: in})
}

// nextEvent reads the next frame queued for c.
func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame, ok := <-c.GetSendChan():
		require.True(t, ok, "send channel closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for event")
		return Envelope{}
	}
}

// expectEvent reads the next frame for c, checks its name and decodes its data.
func expectEvent[T any](t *testing.T, c *Client, event string) T {
	t.Helper()
	env := nextEvent(t, c)
	require.Equal(t, event, env.Event, "unexpected event with data %s", env.Data)
	var payload T
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

// expectNoEvent asserts nothing is queued for c within d.
func expectNoEvent(t *testing.T, c *Client, d time.Duration) {
	t.Helper()
	select {
	case frame, ok := <-c.GetSendChan():
		if ok {
			t.Fatalf("unexpected frame: %s", frame)
		}
	case <-time.After(d):
	}
}

// drainJoin consumes the user_joined, welcome message and room_info events
// that follow a successful join.
func drainJoin(t *testing.T, c *Client) {
	t.Helper()
	expectEvent[UserJoinedPayload](t, c, EventUserJoined)
	expectEvent[MessagePayload](t, c, EventMessage)
	expectEvent[RoomInfoPayload](t, c, EventRoomInfo)
}

// startTestServer serves a full Server over httptest.
func startTestServer(t *testing.T, cfg *Config) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(cfg)
	srv.Start(t.Context())
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		ts.Close()
		srv.Sweeper().Stop()
		require.NoError(t, srv.Hub().Shutdown(time.Second))
	})
	return srv, ts
}

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:3001")

	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(eventTimeout)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readEvent[T any](t *testing.T, conn *websocket.Conn, event string) T {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, event, env.Event, "unexpected event with data %s", env.Data)
	var payload T
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}
