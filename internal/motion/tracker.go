package motion

import (
	"time"

	"doorwatch/internal/pipeline"
)

// Decision describes a direction that fired in a tick
type Decision struct {
	Direction pipeline.Direction
	Distance  float64 // Accumulated distance at the time of firing
	Position  float64 // Extreme position that was inside the zone
}

// DirectionTracker owns the positive and negative accumulators
// At most one direction fires per tick and both reset when one does.
type DirectionTracker struct {
	positive *Accumulator
	negative *Accumulator
}

// NewDirectionTracker creates a tracker. distance is the unsigned activation
// distance; the negative accumulator uses its opposite.
func NewDirectionTracker(distance float64, positiveZone, negativeZone pipeline.Range, cooldown time.Duration) *DirectionTracker {
	if distance < 0 {
		distance = -distance
	}
	return &DirectionTracker{
		positive: NewAccumulator(distance, positiveZone, cooldown),
		negative: NewAccumulator(-distance, negativeZone, cooldown),
	}
}

// Update feeds one tick of correlation results to both accumulators
func (t *DirectionTracker) Update(s TickSummary) {
	d := float64(s.Displacement)
	t.positive.Update(d, float64(s.MinX))
	t.negative.Update(d, float64(s.MaxX))
}

// Check tests positive then negative travel at now
func (t *DirectionTracker) Check(now time.Time) (Decision, bool) {
	var d Decision
	switch {
	case t.positive.ShouldActivate(now):
		d = Decision{
			Direction: pipeline.DirectionPositive,
			Distance:  t.positive.Distance(),
			Position:  t.positive.Position(),
		}
	case t.negative.ShouldActivate(now):
		d = Decision{
			Direction: pipeline.DirectionNegative,
			Distance:  t.negative.Distance(),
			Position:  t.negative.Position(),
		}
	default:
		return Decision{}, false
	}

	t.positive.Reset()
	t.negative.Reset()
	return d, true
}

// Positive returns the positive accumulator
func (t *DirectionTracker) Positive() *Accumulator { return t.positive }

// Negative returns the negative accumulator
func (t *DirectionTracker) Negative() *Accumulator { return t.negative }
