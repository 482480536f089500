package actuator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doorwatch/internal/pipeline"
)

func TestCommandBridge_RunsConfiguredCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	out := filepath.Join(t.TempDir(), "events")
	b, err := NewCommandBridge(map[pipeline.EventKind][]string{
		pipeline.EventMotionPositive: {"sh", "-c", `echo "$DOORWATCH_EVENT $DOORWATCH_FRAME $DOORWATCH_EVENT_ID" >> "$1"`, "sh", out},
	})
	require.NoError(t, err)
	defer b.Close()

	ev := testEvent(pipeline.EventMotionPositive, 5)
	require.NoError(t, b.OnMotionPositive(WithEvent(context.Background(), ev)))

	// Unconfigured events are ignored
	require.NoError(t, b.OnMotionNegative(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "motion_positive 5 "+ev.ID, strings.TrimSpace(string(data)))
}

func TestCommandBridge_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	b, err := NewCommandBridge(map[pipeline.EventKind][]string{
		pipeline.EventDoorLeftOpen: {"sh", "-c", "echo speaker busy >&2; exit 3"},
	})
	require.NoError(t, err)

	err = b.OnDoorLeftOpen(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrActuatorCall))
	assert.Contains(t, err.Error(), "speaker busy")
}

func TestCommandBridge_InvalidCommand(t *testing.T) {
	_, err := NewCommandBridge(map[pipeline.EventKind][]string{pipeline.EventDoorClosed: {}})
	assert.True(t, errors.Is(err, pipeline.ErrMalformedConfig))
}
