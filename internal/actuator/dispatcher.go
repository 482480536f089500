package actuator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// DispatcherConfig holds the delivery settings
type DispatcherConfig struct {
	QueueSize   int           // Events buffered while the bridge is busy (default 64)
	CallTimeout time.Duration // Deadline for a single bridge call (default 5s)
}

// DispatcherStats contains delivery counters
type DispatcherStats struct {
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

// Dispatcher is a pipeline.EventHandler that forwards events to a Bridge from
// its own goroutine. Events are delivered one at a time in publish order, so a
// slow actuator delays later events but never the tick loop. When the queue is
// full new events are dropped and counted.
type Dispatcher struct {
	bridge Bridge
	cfg    DispatcherConfig
	queue  chan *pipeline.Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts a dispatcher for bridge
func NewDispatcher(bridge Bridge, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	d := &Dispatcher{
		bridge: bridge,
		cfg:    cfg,
		queue:  make(chan *pipeline.Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// OnEvent implements pipeline.EventHandler. It never blocks.
func (d *Dispatcher) OnEvent(ev *pipeline.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		monitoring.Logf("[Dispatcher] Queue full, dropping %s event %s", ev.Kind, ev.ID)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(WithEvent(context.Background(), ev), d.cfg.CallTimeout)
		err := Call(ctx, d.bridge, ev.Kind)
		cancel()

		if err != nil {
			d.failed.Add(1)
			monitoring.Logf("[Dispatcher] Failed to deliver %s (frame %d): %v", ev.Kind, ev.FrameSeq, err)
			continue
		}
		d.delivered.Add(1)
		monitoring.Debugf("[Dispatcher] Delivered %s (frame %d)", ev.Kind, ev.FrameSeq)
	}
}

// Stats returns the delivery counters
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// Close stops accepting events, delivers what is already queued and then
// closes the bridge. Safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	s := d.Stats()
	monitoring.Logf("[Dispatcher] Stopped (delivered: %d, failed: %d, dropped: %d)", s.Delivered, s.Failed, s.Dropped)
	return d.bridge.Close()
}

var _ pipeline.EventHandler = (*Dispatcher)(nil)
