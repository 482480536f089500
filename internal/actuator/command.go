package actuator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// CommandBridge runs a local program per event, e.g. a sound player. The
// program gets the event details in DOORWATCH_* environment variables.
type CommandBridge struct {
	commands map[pipeline.EventKind][]string
}

// NewCommandBridge creates a command bridge. Events without a command are
// ignored; argv[0] of each command must be non-empty.
func NewCommandBridge(commands map[pipeline.EventKind][]string) (*CommandBridge, error) {
	for kind, argv := range commands {
		if len(argv) == 0 || argv[0] == "" {
			return nil, fmt.Errorf("%w: empty command for %s", pipeline.ErrMalformedConfig, kind)
		}
	}
	return &CommandBridge{commands: commands}, nil
}

func (b *CommandBridge) run(ctx context.Context, kind pipeline.EventKind) error {
	argv, ok := b.commands[kind]
	if !ok {
		return nil
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "DOORWATCH_EVENT="+string(kind))
	if ev, ok := EventFrom(ctx); ok {
		cmd.Env = append(cmd.Env,
			"DOORWATCH_EVENT_ID="+ev.ID,
			"DOORWATCH_FRAME="+strconv.FormatUint(ev.FrameSeq, 10),
		)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: %s: %v: %s", pipeline.ErrActuatorCall, argv[0], err, msg)
		}
		return fmt.Errorf("%w: %s: %v", pipeline.ErrActuatorCall, argv[0], err)
	}
	monitoring.Debugf("[CommandBridge] Ran %s for %s", argv[0], kind)
	return nil
}

func (b *CommandBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.run(ctx, pipeline.EventDoorLeftOpen)
}

func (b *CommandBridge) OnDoorClosed(ctx context.Context) error {
	return b.run(ctx, pipeline.EventDoorClosed)
}

func (b *CommandBridge) OnMotionPositive(ctx context.Context) error {
	return b.run(ctx, pipeline.EventMotionPositive)
}

func (b *CommandBridge) OnMotionNegative(ctx context.Context) error {
	return b.run(ctx, pipeline.EventMotionNegative)
}

func (b *CommandBridge) Close() error { return nil }

var _ Bridge = (*CommandBridge)(nil)
