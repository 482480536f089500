package actuator

import (
	"context"
	"errors"
	"sync"
	"time"

	"doorwatch/internal/pipeline"
)

var errFakeCall = errors.New("fake actuator failure")

// recordingBridge records the events it receives and can fail or block on demand
type recordingBridge struct {
	mu     sync.Mutex
	calls  []pipeline.EventKind
	events []*pipeline.Event
	fail   map[pipeline.EventKind]bool
	delay  time.Duration
	block  chan struct{}
	closed int
}

func (b *recordingBridge) record(ctx context.Context, kind pipeline.EventKind) error {
	if b.block != nil {
		<-b.block
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, kind)
	if ev, ok := EventFrom(ctx); ok {
		b.events = append(b.events, ev)
	}
	if b.fail[kind] {
		return errFakeCall
	}
	return nil
}

func (b *recordingBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.record(ctx, pipeline.EventDoorLeftOpen)
}

func (b *recordingBridge) OnDoorClosed(ctx context.Context) error {
	return b.record(ctx, pipeline.EventDoorClosed)
}

func (b *recordingBridge) OnMotionPositive(ctx context.Context) error {
	return b.record(ctx, pipeline.EventMotionPositive)
}

func (b *recordingBridge) OnMotionNegative(ctx context.Context) error {
	return b.record(ctx, pipeline.EventMotionNegative)
}

func (b *recordingBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *recordingBridge) Calls() []pipeline.EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pipeline.EventKind(nil), b.calls...)
}

func testEvent(kind pipeline.EventKind, seq uint64) *pipeline.Event {
	ev := pipeline.NewEvent(kind, seq, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))
	if kind == pipeline.EventMotionPositive || kind == pipeline.EventMotionNegative {
		ev.Distance = 212
		ev.Position = 640
	}
	return ev
}
