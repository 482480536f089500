package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doorwatch/internal/monitoring"
)

// DetectorFactory builds the detectors once the first frame size is known
// Thresholds and regions are scaled to the actual resolution there.
type DetectorFactory func(width, height int) ([]Detector, error)

// Options tunes the tick loop
type Options struct {
	StatsInterval time.Duration // Period of the stats log line, 0 disables it
	ProgressEvery uint64        // Debug log every N frames, 0 disables it
}

// DetectionPipeline is the tick loop: acquire a frame, run every detector on
// the (previous, current) pair and publish the decided events
type DetectionPipeline struct {
	monitor   *StreamMonitor
	bus       *EventBus
	build     DetectorFactory
	opts      Options
	detectors []Detector
	prev      *Frame

	stats        Stats
	statsMu      sync.RWMutex
	lastStatsLog time.Time
	now          func() time.Time
}

// NewDetectionPipeline creates a pipeline reading from monitor and publishing on bus
func NewDetectionPipeline(monitor *StreamMonitor, bus *EventBus, build DetectorFactory, opts Options) *DetectionPipeline {
	return &DetectionPipeline{
		monitor: monitor,
		bus:     bus,
		build:   build,
		opts:    opts,
		now:     time.Now,
	}
}

// Run executes ticks until ctx is cancelled. Only configuration and dimension
// errors stop it; dropped frames are handled by the stream monitor.
func (p *DetectionPipeline) Run(ctx context.Context) error {
	defer p.monitor.Close()

	monitoring.Logf("[Pipeline] Processing loop started for %s", p.monitor.source.Describe())
	p.lastStatsLog = p.now()

	for {
		select {
		case <-ctx.Done():
			p.logStats()
			monitoring.Logf("[Pipeline] Processing loop stopped")
			return nil
		default:
		}

		if err := p.Tick(ctx); err != nil {
			p.logStats()
			return err
		}

		if p.opts.StatsInterval > 0 && p.now().Sub(p.lastStatsLog) >= p.opts.StatsInterval {
			p.logStats()
			p.lastStatsLog = p.now()
		}
	}
}

// Tick runs a single acquire/detect/publish iteration
func (p *DetectionPipeline) Tick(ctx context.Context) error {
	frame, ok := p.monitor.TryRead(ctx)
	if !ok {
		if ctx.Err() == nil {
			p.updateStats(func(s *Stats) { s.FramesDropped++ })
		}
		return nil
	}

	p.updateStats(func(s *Stats) {
		s.Ticks++
		s.LastFrameSeq = frame.Seq
		s.LastFrameTime = frame.Timestamp
	})

	if p.opts.ProgressEvery > 0 && frame.Seq%p.opts.ProgressEvery == 0 {
		monitoring.Debugf("[Pipeline] Frame %d (%dx%d)", frame.Seq, frame.Width(), frame.Height())
	}

	// First frame only primes history
	if p.prev == nil {
		if p.detectors == nil {
			detectors, err := p.build(frame.Width(), frame.Height())
			if err != nil {
				return fmt.Errorf("failed to build detectors for %dx%d: %w", frame.Width(), frame.Height(), err)
			}
			p.detectors = detectors
			monitoring.Logf("[Pipeline] %d detector(s) ready for %dx%d frames", len(detectors), frame.Width(), frame.Height())
		}
		p.prev = frame
		return nil
	}

	if frame.Bounds() != p.prev.Bounds() {
		return fmt.Errorf("%w: previous %v, current %v", ErrDimensionMismatch, p.prev.Bounds(), frame.Bounds())
	}

	for _, det := range p.detectors {
		events, err := det.Process(p.prev, frame)
		if err != nil {
			return fmt.Errorf("%s detector: %w", det.Name(), err)
		}
		for _, event := range events {
			monitoring.Logf("[Pipeline] %s event %s at frame %d", det.Name(), event.Kind, event.FrameSeq)
			p.bus.Publish(event)
		}
		if len(events) > 0 {
			p.updateStats(func(s *Stats) { s.Events += uint64(len(events)) })
		}
	}

	p.prev = frame
	return nil
}

// Stats returns a copy of the pipeline counters
func (p *DetectionPipeline) Stats() Stats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	stats := p.stats
	return stats
}

func (p *DetectionPipeline) updateStats(fn func(s *Stats)) {
	p.statsMu.Lock()
	fn(&p.stats)
	p.stats.Reconnects = p.monitor.Health().Reconnects
	p.statsMu.Unlock()
}

func (p *DetectionPipeline) logStats() {
	s := p.Stats()
	monitoring.Logf("[Pipeline] Stats: ticks=%d dropped=%d reconnects=%d events=%d last_frame=%d",
		s.Ticks, s.FramesDropped, s.Reconnects, s.Events, s.LastFrameSeq)
	for _, det := range p.detectors {
		if r, ok := det.(StatsReporter); ok {
			monitoring.Logf("[Pipeline] %s: %s", det.Name(), r.StatsLine())
		}
	}
}
