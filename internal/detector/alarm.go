package detector

// AlarmState is the state of the persistence alarm
type AlarmState int

const (
	AlarmIdle AlarmState = iota
	AlarmAlarming
)

func (s AlarmState) String() string {
	if s == AlarmAlarming {
		return "alarming"
	}
	return "idle"
}

// Transition is the edge taken by a single alarm step
type Transition int

const (
	TransitionNone Transition = iota
	TransitionStart
	TransitionStop
)

// PersistenceAlarm raises an alarm once nothing has moved and the door has
// not looked closed for more than a number of consecutive frames
type PersistenceAlarm struct {
	wait        int
	sinceMotion int
	sinceClosed int
	state       AlarmState
}

// NewPersistenceAlarm creates an idle alarm
func NewPersistenceAlarm(framesToWait int) *PersistenceAlarm {
	return &PersistenceAlarm{wait: framesToWait}
}

// Step advances the alarm by one tick. Each true signal resets its own counter
// and ends an active alarm; false signals count up.
func (a *PersistenceAlarm) Step(motionDetected, doorClosed bool) Transition {
	stop := false
	if motionDetected {
		a.sinceMotion = 0
		stop = true
	} else {
		a.sinceMotion++
	}
	if doorClosed {
		a.sinceClosed = 0
		stop = true
	} else {
		a.sinceClosed++
	}

	if stop {
		if a.state == AlarmAlarming {
			a.state = AlarmIdle
			return TransitionStop
		}
		return TransitionNone
	}

	if a.state == AlarmIdle && a.sinceMotion > a.wait && a.sinceClosed > a.wait {
		a.state = AlarmAlarming
		a.sinceMotion = 0
		a.sinceClosed = 0
		return TransitionStart
	}
	return TransitionNone
}

// State returns the current alarm state
func (a *PersistenceAlarm) State() AlarmState { return a.state }

// Counters returns the frames since the last motion and since the door last looked closed
func (a *PersistenceAlarm) Counters() (sinceMotion, sinceClosed int) {
	return a.sinceMotion, a.sinceClosed
}
