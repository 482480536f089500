package actuator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doorwatch/internal/pipeline"
)

type wsReceived struct {
	msg  ActuatorMessage
	auth string
}

func startWSActuator(t *testing.T) (string, <-chan wsReceived) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	received := make(chan wsReceived, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg ActuatorMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- wsReceived{msg: msg, auth: authz}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestWebSocketBridge_SendsEvents(t *testing.T) {
	url, received := startWSActuator(t)
	b := NewWebSocketBridge(WebSocketBridgeConfig{
		URL: url,
		Header: func() (http.Header, error) {
			h := http.Header{}
			h.Set("Authorization", "Bearer abc")
			return h, nil
		},
	})
	defer b.Close()

	ev := testEvent(pipeline.EventMotionNegative, 12)
	ctx := WithEvent(context.Background(), ev)
	require.NoError(t, b.OnMotionNegative(ctx))
	require.NoError(t, b.OnDoorClosed(context.Background()))

	first := <-received
	assert.Equal(t, "event", first.msg.Type)
	assert.Equal(t, "motion_negative", first.msg.Method)
	assert.Equal(t, ev.ID, first.msg.Event["id"])
	assert.Equal(t, 12.0, first.msg.Event["frame_seq"])
	assert.Equal(t, "Bearer abc", first.auth)

	second := <-received
	assert.Equal(t, "door_closed", second.msg.Method)
	assert.Equal(t, map[string]any{"event": "door_closed"}, second.msg.Event)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestWebSocketBridge_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	b := NewWebSocketBridge(WebSocketBridgeConfig{URL: url})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Handshake rejected
	err := b.OnDoorLeftOpen(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrActuatorCall))
	assert.Contains(t, err.Error(), "404")

	// Nothing listening
	srv.Close()
	err = b.OnDoorLeftOpen(ctx)
	assert.True(t, errors.Is(err, pipeline.ErrActuatorCall))
}

func TestWebSocketBridge_HeaderError(t *testing.T) {
	b := NewWebSocketBridge(WebSocketBridgeConfig{
		URL:    "ws://127.0.0.1:1/",
		Header: func() (http.Header, error) { return nil, errors.New("no key") },
	})
	err := b.OnMotionPositive(context.Background())
	assert.True(t, errors.Is(err, pipeline.ErrActuatorCall))
	assert.Contains(t, err.Error(), "no key")
}
