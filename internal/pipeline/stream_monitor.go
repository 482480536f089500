package pipeline

import (
	"context"
	"time"

	"doorwatch/internal/monitoring"
)

// ReconnectConfig contains configuration for exponential backoff reconnection
// There is no retry limit: a fixed camera is expected to come back eventually.
type ReconnectConfig struct {
	RetryDelay    time.Duration // Initial retry delay (default: 500ms)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 30 * time.Second,
	}
}

// StreamHealth describes the read history of a source. Used for logging only.
type StreamHealth struct {
	LastFrameSeq        uint64
	LastFrameTime       time.Time
	ConsecutiveFailures int
	TotalFailures       uint64
	Reconnects          uint64
	LastError           error
}

// StreamMonitor wraps a FrameSource and keeps the tick loop alive across
// dropped frames by re-opening the source with backoff
type StreamMonitor struct {
	source FrameSource
	cfg    ReconnectConfig
	health StreamHealth
	open   bool

	// wait is replaced in tests to avoid real sleeps
	wait func(ctx context.Context, d time.Duration) error
}

// NewStreamMonitor creates a monitor around source. The source is opened lazily
// on the first read.
func NewStreamMonitor(source FrameSource, cfg ReconnectConfig) *StreamMonitor {
	def := DefaultReconnectConfig()
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	return &StreamMonitor{
		source: source,
		cfg:    cfg,
		wait:   sleepContext,
	}
}

// TryRead returns the next frame, or false when the frame was dropped
// A dropped frame triggers a reconnect before returning. The caller must not
// advance any detector state on false.
func (m *StreamMonitor) TryRead(ctx context.Context) (*Frame, bool) {
	if !m.open {
		if !m.reconnect(ctx) {
			return nil, false
		}
	}

	frame, err := m.source.ReadFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		m.recordFailure(err)
		monitoring.Logf("[StreamMonitor] Dropped frame from %s (consecutive failures: %d): %v",
			m.source.Describe(), m.health.ConsecutiveFailures, err)
		m.reconnect(ctx)
		return nil, false
	}

	if m.health.ConsecutiveFailures > 0 {
		monitoring.Logf("[StreamMonitor] Stream %s recovered after %d failed reads",
			m.source.Describe(), m.health.ConsecutiveFailures)
	}
	m.health.ConsecutiveFailures = 0
	m.health.LastFrameSeq = frame.Seq
	m.health.LastFrameTime = frame.Timestamp
	m.health.LastError = nil
	return frame, true
}

// reconnect closes and re-opens the source after a backoff delay.
// Returns true when the source is open again.
func (m *StreamMonitor) reconnect(ctx context.Context) bool {
	if m.health.ConsecutiveFailures > 0 {
		delay := calculateBackoff(m.health.ConsecutiveFailures, m.cfg)
		monitoring.Debugf("[StreamMonitor] Waiting %v before reconnecting to %s", delay, m.source.Describe())
		if err := m.wait(ctx, delay); err != nil {
			return false
		}
		m.health.Reconnects++
	}

	if m.open {
		if err := m.source.Close(); err != nil {
			monitoring.Logf("[StreamMonitor] Error closing %s: %v", m.source.Describe(), err)
		}
		m.open = false
	}

	if err := m.source.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.recordFailure(err)
		monitoring.Logf("[StreamMonitor] Failed to open %s (attempt %d): %v",
			m.source.Describe(), m.health.ConsecutiveFailures, err)
		return false
	}

	m.open = true
	monitoring.Logf("[StreamMonitor] Opened %s", m.source.Describe())
	return true
}

func (m *StreamMonitor) recordFailure(err error) {
	m.health.ConsecutiveFailures++
	m.health.TotalFailures++
	m.health.LastError = err
}

// Health returns a copy of the current stream health
func (m *StreamMonitor) Health() StreamHealth {
	return m.health
}

// Close releases the source if it is open
func (m *StreamMonitor) Close() error {
	if !m.open {
		return nil
	}
	m.open = false
	return m.source.Close()
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Large attempt counts saturate at the cap without overflowing the shift
	if attempt > 21 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
