package actuator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// WebSocketBridgeConfig holds configuration for the websocket actuator
type WebSocketBridgeConfig struct {
	URL          string
	WriteTimeout time.Duration               // Per message write deadline (default 10s)
	Header       func() (http.Header, error) // Optional handshake headers, e.g. a bearer token
}

// ActuatorMessage is the JSON text message sent for each event
type ActuatorMessage struct {
	Type   string         `json:"type"` // "event"
	Method string         `json:"method"`
	Event  map[string]any `json:"event"`
}

// WebSocketBridge pushes events to an actuator that accepts websocket
// connections. It dials on first use and redials after a failed write.
type WebSocketBridge struct {
	cfg    WebSocketBridgeConfig
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketBridge creates a websocket bridge
func NewWebSocketBridge(cfg WebSocketBridgeConfig) *WebSocketBridge {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &WebSocketBridge{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// connect must be called with b.mu held
func (b *WebSocketBridge) connect(ctx context.Context) error {
	if b.conn != nil {
		return nil
	}

	var header http.Header
	if b.cfg.Header != nil {
		h, err := b.cfg.Header()
		if err != nil {
			return fmt.Errorf("error building handshake header: %w", err)
		}
		header = h
	}

	conn, resp, err := b.dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("error dialing %s: %w (status %s)", b.cfg.URL, err, resp.Status)
		}
		return fmt.Errorf("error dialing %s: %w", b.cfg.URL, err)
	}
	b.conn = conn
	monitoring.Logf("[WS] Connected to actuator %s", b.cfg.URL)
	return nil
}

func (b *WebSocketBridge) send(ctx context.Context, kind pipeline.EventKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrActuatorCall, err)
	}

	deadline := time.Now().Add(b.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	b.conn.SetWriteDeadline(deadline)

	msg := ActuatorMessage{Type: "event", Method: string(kind), Event: eventFields(ctx, kind)}
	if err := b.conn.WriteJSON(msg); err != nil {
		monitoring.Logf("[WS] Error sending to actuator: %v", err)
		b.conn.Close()
		b.conn = nil
		return fmt.Errorf("%w: %s: %v", pipeline.ErrActuatorCall, kind, err)
	}
	return nil
}

func (b *WebSocketBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.send(ctx, pipeline.EventDoorLeftOpen)
}

func (b *WebSocketBridge) OnDoorClosed(ctx context.Context) error {
	return b.send(ctx, pipeline.EventDoorClosed)
}

func (b *WebSocketBridge) OnMotionPositive(ctx context.Context) error {
	return b.send(ctx, pipeline.EventMotionPositive)
}

func (b *WebSocketBridge) OnMotionNegative(ctx context.Context) error {
	return b.send(ctx, pipeline.EventMotionNegative)
}

// Close sends a close frame and closes the connection
func (b *WebSocketBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := b.conn.Close()
	b.conn = nil
	return err
}

var _ Bridge = (*WebSocketBridge)(nil)
