package motion

import (
	"time"

	"doorwatch/internal/pipeline"
)

// Accumulator integrates signed horizontal travel for one direction and
// decides when it has gone far enough, inside its zone, to fire
type Accumulator struct {
	target   float64 // Signed activation distance
	zone     pipeline.Range
	cooldown time.Duration

	distance float64
	position float64
	lastFire time.Time
}

// NewAccumulator creates an accumulator. A negative target tracks travel
// towards decreasing x.
func NewAccumulator(target float64, zone pipeline.Range, cooldown time.Duration) *Accumulator {
	return &Accumulator{
		target:   target,
		zone:     zone,
		cooldown: cooldown,
	}
}

// Update adds displacement and records the extreme position of this tick.
// A zero displacement means no motion was matched and clears the distance.
func (a *Accumulator) Update(displacement, position float64) {
	if displacement == 0 {
		a.distance = 0
		return
	}
	a.distance += displacement
	a.position = position
}

// ShouldActivate reports whether the accumulator fires at now, recording the
// fire time when it does
func (a *Accumulator) ShouldActivate(now time.Time) bool {
	if a.InCooldown(now) {
		return false
	}

	dist, target := a.distance, a.target
	if target < 0 {
		dist, target = -dist, -target
	}
	if dist <= target {
		return false
	}

	if !a.zone.Contains(a.position) {
		return false
	}

	a.lastFire = now
	return true
}

// Reset clears the accumulated distance. The cooldown is kept.
func (a *Accumulator) Reset() {
	a.distance = 0
}

// Distance returns the accumulated signed distance
func (a *Accumulator) Distance() float64 { return a.distance }

// Position returns the last recorded extreme position
func (a *Accumulator) Position() float64 { return a.position }

// Target returns the signed activation distance
func (a *Accumulator) Target() float64 { return a.target }

// Zone returns the zone the position must fall in
func (a *Accumulator) Zone() pipeline.Range { return a.zone }

// InCooldown reports whether a fire at now would be suppressed by the cooldown
func (a *Accumulator) InCooldown(now time.Time) bool {
	return !a.lastFire.IsZero() && now.Sub(a.lastFire) < a.cooldown
}
