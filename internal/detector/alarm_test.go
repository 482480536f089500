package detector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runQuiet steps the alarm with no motion and an open door for n ticks and
// returns the ticks (1-based, offset by start) on which it started alarming
func runQuiet(a *PersistenceAlarm, start, n int) []int {
	var starts []int
	for i := 1; i <= n; i++ {
		if a.Step(false, false) == TransitionStart {
			starts = append(starts, start+i)
		}
	}
	return starts
}

func TestPersistenceAlarm_FiresOnceAtTick301(t *testing.T) {
	a := NewPersistenceAlarm(300)

	starts := runQuiet(a, 0, 301)
	assert.Equal(t, []int{301}, starts)
	assert.Equal(t, AlarmAlarming, a.State())

	sinceMotion, sinceClosed := a.Counters()
	assert.Zero(t, sinceMotion)
	assert.Zero(t, sinceClosed)

	// Staying quiet does not start a second alarm
	assert.Empty(t, runQuiet(a, 301, 1000))
}

func TestPersistenceAlarm_MotionDelaysAlarm(t *testing.T) {
	a := NewPersistenceAlarm(300)

	require.Empty(t, runQuiet(a, 0, 149))
	assert.Equal(t, TransitionNone, a.Step(true, false))

	sinceMotion, sinceClosed := a.Counters()
	assert.Zero(t, sinceMotion)
	assert.Equal(t, 150, sinceClosed)

	starts := runQuiet(a, 150, 301)
	assert.Equal(t, []int{451}, starts)
}

func TestPersistenceAlarm_ClosedDoorBlocksAlarm(t *testing.T) {
	a := NewPersistenceAlarm(10)

	for i := 0; i < 100; i++ {
		assert.Equal(t, TransitionNone, a.Step(false, i%10 == 0))
	}
	assert.Equal(t, AlarmIdle, a.State())
}

func TestPersistenceAlarm_StopOnSignal(t *testing.T) {
	for _, tc := range []struct {
		name           string
		motion, closed bool
	}{
		{"motion", true, false},
		{"closed", false, true},
		{"both", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := NewPersistenceAlarm(2)
			require.Equal(t, []int{3}, runQuiet(a, 0, 3))

			assert.Equal(t, TransitionStop, a.Step(tc.motion, tc.closed))
			assert.Equal(t, AlarmIdle, a.State())
			assert.Equal(t, TransitionNone, a.Step(tc.motion, tc.closed))
		})
	}
}

func TestPersistenceAlarm_StartsOnlyWhenBothCountersExceedWait(t *testing.T) {
	const wait = 5
	rng := rand.New(rand.NewSource(5))
	a := NewPersistenceAlarm(wait)

	// Shadow counters tracked independently of the alarm
	var sinceMotion, sinceClosed int
	alarming := false
	for i := 0; i < 20000; i++ {
		motion := rng.Intn(20) == 0
		closed := rng.Intn(15) == 0

		if motion {
			sinceMotion = 0
		} else {
			sinceMotion++
		}
		if closed {
			sinceClosed = 0
		} else {
			sinceClosed++
		}

		switch a.Step(motion, closed) {
		case TransitionStart:
			assert.False(t, alarming)
			assert.Greater(t, sinceMotion, wait)
			assert.Greater(t, sinceClosed, wait)
			alarming = true
			sinceMotion, sinceClosed = 0, 0
		case TransitionStop:
			assert.True(t, alarming)
			assert.True(t, motion || closed)
			alarming = false
		default:
			if motion || closed {
				assert.False(t, alarming)
			}
		}
		assert.Equal(t, alarming, a.State() == AlarmAlarming)
	}
}
