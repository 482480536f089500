package detector

import (
	"time"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// AlarmLog logs each door alarm and how long it lasted. Its handlers run on
// the goroutine that publishes, so it needs no locking.
type AlarmLog struct {
	openedAt  time.Time
	openedSeq uint64
}

// Subscribe attaches the log to the door events of bus and returns a function
// that detaches it
func (l *AlarmLog) Subscribe(bus *pipeline.EventBus) func() {
	offOpen := bus.SubscribeKind(pipeline.EventDoorLeftOpen, pipeline.EventHandlerFunc(l.opened))
	offClosed := bus.SubscribeKind(pipeline.EventDoorClosed, pipeline.EventHandlerFunc(l.closed))
	return func() {
		offOpen()
		offClosed()
	}
}

func (l *AlarmLog) opened(ev *pipeline.Event) {
	l.openedAt = ev.Timestamp
	l.openedSeq = ev.FrameSeq
	monitoring.Logf("[Door] Door left open (frame %d)", ev.FrameSeq)
}

func (l *AlarmLog) closed(ev *pipeline.Event) {
	if l.openedAt.IsZero() {
		return
	}
	monitoring.Logf("[Door] Alarm cleared after %v (%d frames)",
		ev.Timestamp.Sub(l.openedAt).Round(time.Second), ev.FrameSeq-l.openedSeq)
	l.openedAt = time.Time{}
}
