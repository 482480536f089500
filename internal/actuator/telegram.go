package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramBridgeConfig holds Telegram notification configuration
type TelegramBridgeConfig struct {
	BotToken string
	ChatID   string
	Cooldown time.Duration // Minimum time between two messages of the same kind (default 30s)
	Camera   string        // Shown in the message body
	APIBase  string        // Defaults to the public Bot API
}

// TelegramResponse represents the response from Telegram API
type TelegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// TelegramBridge sends a chat message for every event. Messages of a kind sent
// within the cooldown of the previous one are skipped.
type TelegramBridge struct {
	cfg        TelegramBridgeConfig
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[pipeline.EventKind]time.Time
}

// NewTelegramBridge creates a Telegram bridge
func NewTelegramBridge(cfg TelegramBridgeConfig) (*TelegramBridge, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("%w: telegram bot token and chat ID are required", pipeline.ErrMalformedConfig)
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("%w: telegram cooldown cannot be negative", pipeline.ErrMalformedConfig)
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultTelegramAPI
	}
	return &TelegramBridge{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		lastSent:   make(map[pipeline.EventKind]time.Time),
	}, nil
}

func (b *TelegramBridge) text(ctx context.Context, kind pipeline.EventKind) string {
	var headline string
	switch kind {
	case pipeline.EventDoorLeftOpen:
		headline = "🚪 <b>Door left open</b>"
	case pipeline.EventDoorClosed:
		headline = "✅ <b>Door closed</b>"
	case pipeline.EventMotionPositive:
		headline = "➡️ <b>Motion (positive)</b>"
	case pipeline.EventMotionNegative:
		headline = "⬅️ <b>Motion (negative)</b>"
	default:
		headline = string(kind)
	}

	ts := b.now()
	if ev, ok := EventFrom(ctx); ok {
		ts = ev.Timestamp
	}
	zoneName, _ := ts.Zone()
	msg := headline + "\n\n"
	if b.cfg.Camera != "" {
		msg += fmt.Sprintf("📹 Camera: %s\n", b.cfg.Camera)
	}
	msg += fmt.Sprintf("🕐 Time: %s %s", ts.Format("2 Jan 2006, 15:04:05"), zoneName)
	return msg
}

func (b *TelegramBridge) send(ctx context.Context, kind pipeline.EventKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if last, ok := b.lastSent[kind]; ok && b.now().Sub(last) < b.cfg.Cooldown {
		monitoring.Debugf("[Telegram] Skipping %s, cooldown not elapsed", kind)
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    b.cfg.ChatID,
		"text":       b.text(ctx, kind),
		"parse_mode": "HTML",
	}
	if err := b.request(ctx, "sendMessage", payload); err != nil {
		return fmt.Errorf("%w: %s: %v", pipeline.ErrActuatorCall, kind, err)
	}
	b.lastSent[kind] = b.now()
	return nil
}

func (b *TelegramBridge) request(ctx context.Context, method string, payload map[string]interface{}) error {
	url := fmt.Sprintf("%s/bot%s/%s", b.cfg.APIBase, b.cfg.BotToken, method)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token, keep it out of logs
		return fmt.Errorf("failed to send request to %s", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var telegramResp TelegramResponse
	if err := json.Unmarshal(body, &telegramResp); err != nil {
		return fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if !telegramResp.OK {
		return fmt.Errorf("telegram API error %d: %s", telegramResp.ErrorCode, telegramResp.Description)
	}
	return nil
}

func (b *TelegramBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.send(ctx, pipeline.EventDoorLeftOpen)
}

func (b *TelegramBridge) OnDoorClosed(ctx context.Context) error {
	return b.send(ctx, pipeline.EventDoorClosed)
}

func (b *TelegramBridge) OnMotionPositive(ctx context.Context) error {
	return b.send(ctx, pipeline.EventMotionPositive)
}

func (b *TelegramBridge) OnMotionNegative(ctx context.Context) error {
	return b.send(ctx, pipeline.EventMotionNegative)
}

func (b *TelegramBridge) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

var _ Bridge = (*TelegramBridge)(nil)
