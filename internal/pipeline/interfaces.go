package pipeline

import (
	"context"
)

// FrameSource supplies ordered frames from a camera
// ReadFrame returning an error means the frame was dropped. A source that
// failed may be closed and opened again with the same identifier.
type FrameSource interface {
	// Open acquires the underlying camera or stream
	Open(ctx context.Context) error

	// ReadFrame blocks until the next frame is available
	ReadFrame(ctx context.Context) (*Frame, error)

	// Close releases the underlying camera or stream
	Close() error

	// Describe returns the source identifier for logs
	Describe() string
}

// Detector is one event-producing stage of the tick loop
// Detectors keep their own cross-tick state and are only ever called from the
// goroutine running the pipeline.
type Detector interface {
	// Name returns the detector identifier (e.g., "direction", "door")
	Name() string

	// Process runs one tick on a pair of consecutive frames of equal size
	// and returns the events decided in this tick (possibly none)
	Process(prev, cur *Frame) ([]*Event, error)
}

// EventHandler receives events published on the EventBus
type EventHandler interface {
	// OnEvent is called for each published event, in publish order
	OnEvent(event *Event)
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc func(event *Event)

// OnEvent implements EventHandler
func (f EventHandlerFunc) OnEvent(event *Event) { f(event) }

// StatsReporter is implemented by detectors that keep their own counters
type StatsReporter interface {
	StatsLine() string
}
