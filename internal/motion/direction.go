package motion

import (
	"fmt"
	"time"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// Config holds the scaled settings of the direction detector
type Config struct {
	Extractor          ExtractorConfig
	Correlator         CorrelatorConfig
	ActivationDistance float64
	PositiveZone       pipeline.Range
	NegativeZone       pipeline.Range
	Cooldown           time.Duration
}

// DetectorStats contains direction detector counters
type DetectorStats struct {
	Ticks   uint64
	Blobs   uint64
	Matches uint64
	Fired   uint64
}

// DirectionDetector reports people walking through the doorway in either
// direction. It implements pipeline.Detector.
type DirectionDetector struct {
	extractor  *Extractor
	correlator *Correlator
	tracker    *DirectionTracker
	binding    pipeline.Binding
	prevBlobs  []Blob
	stats      DetectorStats
}

// NewDirectionDetector creates the detector from scaled settings
func NewDirectionDetector(cfg Config, binding pipeline.Binding) (*DirectionDetector, error) {
	extractor, err := NewExtractor(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	if cfg.ActivationDistance <= 0 {
		return nil, fmt.Errorf("%w: activation distance must be positive, got %g", pipeline.ErrMalformedConfig, cfg.ActivationDistance)
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("%w: cooldown must not be negative, got %v", pipeline.ErrMalformedConfig, cfg.Cooldown)
	}

	return &DirectionDetector{
		extractor:  extractor,
		correlator: NewCorrelator(cfg.Correlator),
		tracker:    NewDirectionTracker(cfg.ActivationDistance, cfg.PositiveZone, cfg.NegativeZone, cfg.Cooldown),
		binding:    binding,
	}, nil
}

// Name implements pipeline.Detector
func (d *DirectionDetector) Name() string { return "direction" }

// Process implements pipeline.Detector
func (d *DirectionDetector) Process(prev, cur *pipeline.Frame) ([]*pipeline.Event, error) {
	blobs, err := d.extractor.Extract(prev.Gray, cur.Gray)
	if err != nil {
		return nil, err
	}

	summary := d.correlator.Correlate(d.prevBlobs, blobs)
	d.prevBlobs = blobs

	d.stats.Ticks++
	d.stats.Blobs += uint64(len(blobs))
	d.stats.Matches += uint64(len(summary.Matches))

	if summary.Matched() {
		monitoring.Debugf("[DirectionDetector] Frame %d: %d blobs, %d matches, displacement %d (x %d..%d)",
			cur.Seq, len(blobs), len(summary.Matches), summary.Displacement, summary.MinX, summary.MaxX)
	}

	d.tracker.Update(summary)
	decision, ok := d.tracker.Check(cur.Timestamp)
	if !ok {
		return nil, nil
	}

	d.stats.Fired++
	event := pipeline.NewEvent(d.binding.Event(decision.Direction), cur.Seq, cur.Timestamp)
	event.Distance = decision.Distance
	event.Position = decision.Position
	monitoring.Logf("[DirectionDetector] Motion %s detected (distance %.0f, position %.0f)",
		decision.Direction, decision.Distance, decision.Position)
	return []*pipeline.Event{event}, nil
}

// Stats returns a copy of the detector counters
func (d *DirectionDetector) Stats() DetectorStats {
	return d.stats
}

// StatsLine implements pipeline.StatsReporter
func (d *DirectionDetector) StatsLine() string {
	return fmt.Sprintf("ticks=%d blobs=%d matches=%d fired=%d",
		d.stats.Ticks, d.stats.Blobs, d.stats.Matches, d.stats.Fired)
}

var _ pipeline.Detector = (*DirectionDetector)(nil)
