package motion

import (
	"math"

	"doorwatch/internal/monitoring"
)

// CorrelatorConfig holds the blob pairing limits
type CorrelatorConfig struct {
	MaxAreaRatioDiff float64 // Smaller/larger area ratio below this rejects the pair
	MinHeight        float64 // Current box top above this row rejects the pair
	MaxDistance      float64 // Centroid distance above this rejects the pair
}

// DefaultCorrelatorConfig returns the pairing defaults at 1920x1080
func DefaultCorrelatorConfig() CorrelatorConfig {
	return CorrelatorConfig{
		MaxAreaRatioDiff: 0.5,
		MinHeight:        300,
		MaxDistance:      200,
	}
}

// BlobMatch pairs a previous blob with a current blob judged to be the same
// object moving
type BlobMatch struct {
	Prev Blob
	Cur  Blob
	DX   int // Current centre x minus previous centre x
	DY   int
	X    int // Current centre x
}

// TickSummary aggregates the matches of one tick
type TickSummary struct {
	Matches      []BlobMatch
	Displacement int // Sum of DX over all matches
	MinX         int // Leftmost matched current centre, tested for positive travel
	MaxX         int // Rightmost matched current centre, tested for negative travel
}

// Matched reports whether any pair was accepted
func (s TickSummary) Matched() bool {
	return len(s.Matches) > 0
}

// Correlator pairs blobs across consecutive ticks. It is stateless.
type Correlator struct {
	cfg CorrelatorConfig
}

// NewCorrelator creates a correlator
func NewCorrelator(cfg CorrelatorConfig) *Correlator {
	return &Correlator{cfg: cfg}
}

// Match decides whether prev and cur are the same object moving
func (c *Correlator) Match(prev, cur Blob) (BlobMatch, bool) {
	small, large := float64(prev.Area), float64(cur.Area)
	if small > large {
		small, large = large, small
	}
	if large == 0 {
		return BlobMatch{}, false
	}
	if ratio := small / large; ratio < c.cfg.MaxAreaRatioDiff {
		monitoring.Debugf("[Correlator] Area cutoff, %.3f < %.3f", ratio, c.cfg.MaxAreaRatioDiff)
		return BlobMatch{}, false
	}

	if y := float64(cur.Box.Min.Y); y < c.cfg.MinHeight {
		monitoring.Debugf("[Correlator] Height cutoff, %.0f < %.0f", y, c.cfg.MinHeight)
		return BlobMatch{}, false
	}

	pc, cc := prev.Center(), cur.Center()
	if d := cc.Dist(pc); d > c.cfg.MaxDistance {
		monitoring.Debugf("[Correlator] Distance cutoff, %.1f > %.1f", d, c.cfg.MaxDistance)
		return BlobMatch{}, false
	}

	move := cc.Sub(pc)
	return BlobMatch{
		Prev: prev,
		Cur:  cur,
		DX:   move.X,
		DY:   move.Y,
		X:    cc.X,
	}, true
}

// Correlate tests the full cross product of prev and cur
func (c *Correlator) Correlate(prev, cur []Blob) TickSummary {
	summary := TickSummary{
		MinX: math.MaxInt,
		MaxX: math.MinInt,
	}
	for _, p := range prev {
		for _, q := range cur {
			m, ok := c.Match(p, q)
			if !ok {
				continue
			}
			summary.Matches = append(summary.Matches, m)
			summary.Displacement += m.DX
			if m.X < summary.MinX {
				summary.MinX = m.X
			}
			if m.X > summary.MaxX {
				summary.MaxX = m.X
			}
		}
	}
	if !summary.Matched() {
		summary.MinX, summary.MaxX = 0, 0
	}
	return summary
}
