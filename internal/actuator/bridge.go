// Package actuator delivers detector events to whatever acts on them: a remote
// sound player over gRPC or websocket, a serial relay, or a local command.
package actuator

import (
	"context"
	"errors"
	"fmt"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// Bridge is the outbound side of the detector. Calls are fire-and-forget from
// the detector's point of view; the Dispatcher logs any error returned.
type Bridge interface {
	OnDoorLeftOpen(ctx context.Context) error
	OnDoorClosed(ctx context.Context) error
	OnMotionPositive(ctx context.Context) error
	OnMotionNegative(ctx context.Context) error
	Close() error
}

type eventKey struct{}

// WithEvent attaches the event being delivered so bridges can include its details
func WithEvent(ctx context.Context, ev *pipeline.Event) context.Context {
	return context.WithValue(ctx, eventKey{}, ev)
}

// EventFrom returns the event attached with WithEvent, if any
func EventFrom(ctx context.Context) (*pipeline.Event, bool) {
	ev, ok := ctx.Value(eventKey{}).(*pipeline.Event)
	return ev, ok && ev != nil
}

// Call invokes the bridge method for kind. Errors are wrapped with
// pipeline.ErrActuatorCall.
func Call(ctx context.Context, b Bridge, kind pipeline.EventKind) error {
	var err error
	switch kind {
	case pipeline.EventDoorLeftOpen:
		err = b.OnDoorLeftOpen(ctx)
	case pipeline.EventDoorClosed:
		err = b.OnDoorClosed(ctx)
	case pipeline.EventMotionPositive:
		err = b.OnMotionPositive(ctx)
	case pipeline.EventMotionNegative:
		err = b.OnMotionNegative(ctx)
	default:
		return fmt.Errorf("%w: unknown event kind %q", pipeline.ErrActuatorCall, kind)
	}
	if err != nil && !errors.Is(err, pipeline.ErrActuatorCall) {
		err = fmt.Errorf("%w: %s: %v", pipeline.ErrActuatorCall, kind, err)
	}
	return err
}

// eventFields flattens the event in ctx (or just the kind) into a generic map
// used by the wire bridges
func eventFields(ctx context.Context, kind pipeline.EventKind) map[string]any {
	fields := map[string]any{"event": string(kind)}
	ev, ok := EventFrom(ctx)
	if !ok {
		return fields
	}
	fields["id"] = ev.ID
	fields["timestamp"] = ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	fields["frame_seq"] = ev.FrameSeq
	if ev.Kind == pipeline.EventMotionPositive || ev.Kind == pipeline.EventMotionNegative {
		fields["distance"] = ev.Distance
		fields["position"] = ev.Position
	}
	return fields
}

// LogBridge only logs. Used when no actuator is configured.
type LogBridge struct{}

func (LogBridge) log(ctx context.Context, kind pipeline.EventKind) error {
	if ev, ok := EventFrom(ctx); ok {
		monitoring.Logf("[Actuator] %s (frame %d, id %s)", kind, ev.FrameSeq, ev.ID)
		return nil
	}
	monitoring.Logf("[Actuator] %s", kind)
	return nil
}

func (b LogBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.log(ctx, pipeline.EventDoorLeftOpen)
}

func (b LogBridge) OnDoorClosed(ctx context.Context) error {
	return b.log(ctx, pipeline.EventDoorClosed)
}

func (b LogBridge) OnMotionPositive(ctx context.Context) error {
	return b.log(ctx, pipeline.EventMotionPositive)
}

func (b LogBridge) OnMotionNegative(ctx context.Context) error {
	return b.log(ctx, pipeline.EventMotionNegative)
}

func (LogBridge) Close() error { return nil }

// Multi fans every call out to all bridges in order. Every bridge is called
// even when an earlier one fails; the errors are joined.
type Multi []Bridge

func (m Multi) each(ctx context.Context, kind pipeline.EventKind) error {
	var errs []error
	for _, b := range m {
		if err := Call(ctx, b, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) OnDoorLeftOpen(ctx context.Context) error {
	return m.each(ctx, pipeline.EventDoorLeftOpen)
}

func (m Multi) OnDoorClosed(ctx context.Context) error {
	return m.each(ctx, pipeline.EventDoorClosed)
}

func (m Multi) OnMotionPositive(ctx context.Context) error {
	return m.each(ctx, pipeline.EventMotionPositive)
}

func (m Multi) OnMotionNegative(ctx context.Context) error {
	return m.each(ctx, pipeline.EventMotionNegative)
}

// Close closes every bridge and joins the errors
func (m Multi) Close() error {
	var errs []error
	for _, b := range m {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Bridge = LogBridge{}
	_ Bridge = Multi(nil)
)
