package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// SnapshotConfig holds the HTTP polling settings
type SnapshotConfig struct {
	Interval time.Duration // Minimum time between requests (default 500ms)
	Timeout  time.Duration // Per request timeout (default 10s)
	MaxBytes int64         // Largest accepted image (default 16MB)
	Decoder  Decoder
	Client   *http.Client // Optional, mainly for tests
}

// SnapshotSource polls an HTTP endpoint that returns one still image per request
type SnapshotSource struct {
	url    string
	cfg    SnapshotConfig
	client *http.Client
	last   time.Time
	seq    uint64
	open   bool
}

// NewSnapshotSource creates a polling source for url
func NewSnapshotSource(url string, cfg SnapshotConfig) *SnapshotSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 << 20
	}
	return &SnapshotSource{url: url, cfg: cfg}
}

// Describe implements pipeline.FrameSource
func (s *SnapshotSource) Describe() string { return s.url }

// Open implements pipeline.FrameSource
func (s *SnapshotSource) Open(ctx context.Context) error {
	s.client = s.cfg.Client
	if s.client == nil {
		s.client = &http.Client{Timeout: s.cfg.Timeout}
	}
	s.open = true
	monitoring.Logf("[SnapshotSource] Polling %s every %v", s.url, s.cfg.Interval)
	return nil
}

// ReadFrame implements pipeline.FrameSource
func (s *SnapshotSource) ReadFrame(ctx context.Context) (*pipeline.Frame, error) {
	if !s.open {
		return nil, fmt.Errorf("%w: snapshot source %s not open", pipeline.ErrFrameAcquisition, s.url)
	}

	if wait := s.cfg.Interval - time.Since(s.last); !s.last.IsZero() && wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	s.last = time.Now()

	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.seq++
	return s.cfg.Decoder.Decode(s.seq, s.last, data)
}

func (s *SnapshotSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrFrameAcquisition, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error fetching frame from %s: %v", pipeline.ErrFrameAcquisition, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", pipeline.ErrFrameAcquisition, s.url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: error reading frame: %v", pipeline.ErrFrameAcquisition, err)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: frame from %s larger than %d bytes", pipeline.ErrFrameAcquisition, s.url, s.cfg.MaxBytes)
	}
	return data, nil
}

// Close implements pipeline.FrameSource
func (s *SnapshotSource) Close() error {
	if s.open && s.cfg.Client == nil {
		s.client.CloseIdleConnections()
	}
	s.open = false
	return nil
}

var _ pipeline.FrameSource = (*SnapshotSource)(nil)
