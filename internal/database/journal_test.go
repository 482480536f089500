package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doorwatch/internal/pipeline"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), "cam0")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

var t0 = time.Date(2024, 5, 2, 18, 0, 0, 0, time.UTC)

func event(kind pipeline.EventKind, seq uint64, at time.Duration) *pipeline.Event {
	ev := pipeline.NewEvent(kind, seq, t0.Add(at))
	if kind == pipeline.EventMotionPositive {
		ev.Distance, ev.Position = 230.5, 412
	}
	return ev
}

func TestJournal_RecordAndGet(t *testing.T) {
	j := openTestJournal(t)
	ev := event(pipeline.EventMotionPositive, 88, 1500*time.Millisecond)
	require.NoError(t, j.Record(ev))

	got, err := j.Get(ev.ID)
	require.NoError(t, err)
	want := &EventRecord{
		ID:        ev.ID,
		Source:    "cam0",
		Kind:      pipeline.EventMotionPositive,
		Timestamp: ev.Timestamp,
		FrameSeq:  88,
		Distance:  230.5,
		Position:  412,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	missing, err := j.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Duplicate records are ignored
	require.NoError(t, j.Record(ev))
	all, err := j.List(ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestJournal_ListFilters(t *testing.T) {
	j := openTestJournal(t)
	events := []*pipeline.Event{
		event(pipeline.EventDoorLeftOpen, 301, 10*time.Second),
		event(pipeline.EventMotionPositive, 350, 12*time.Second),
		event(pipeline.EventDoorClosed, 400, 13*time.Second),
		event(pipeline.EventMotionPositive, 420, 14*time.Second),
	}
	for _, ev := range events {
		j.OnEvent(ev)
	}

	all, err := j.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, uint64(420), all[0].FrameSeq, "newest first")
	assert.Equal(t, uint64(301), all[3].FrameSeq)

	motion, err := j.List(ListFilter{Kind: pipeline.EventMotionPositive})
	require.NoError(t, err)
	assert.Len(t, motion, 2)

	recent, err := j.List(ListFilter{Since: t0.Add(13 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := j.List(ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, events[3].ID, limited[0].ID)

	counts, err := j.CountByKind()
	require.NoError(t, err)
	assert.Equal(t, map[pipeline.EventKind]int{
		pipeline.EventDoorLeftOpen:   1,
		pipeline.EventDoorClosed:     1,
		pipeline.EventMotionPositive: 2,
	}, counts)
}

func TestJournal_ConsumeBusSubscription(t *testing.T) {
	j := openTestJournal(t)
	bus := pipeline.NewEventBus()
	events, unsubscribe := bus.SubscribeChannel(8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Consume(events)
	}()

	published := []*pipeline.Event{
		event(pipeline.EventDoorLeftOpen, 1, 0),
		event(pipeline.EventMotionPositive, 2, time.Second),
		event(pipeline.EventDoorClosed, 3, 2*time.Second),
	}
	for _, ev := range published {
		bus.Publish(ev)
	}

	// Unsubscribing closes the channel; Consume records what was queued and returns
	unsubscribe()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not return after the channel was closed")
	}

	all, err := j.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first
	assert.Equal(t, published[2].ID, all[0].ID)
	assert.Equal(t, published[0].ID, all[2].ID)
}

func TestJournal_DeleteBefore(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Record(event(pipeline.EventDoorLeftOpen, 1, 0)))
	require.NoError(t, j.Record(event(pipeline.EventDoorClosed, 2, time.Hour)))

	n, err := j.DeleteBefore(t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := j.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, pipeline.EventDoorClosed, left[0].Kind)
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, "cam0")
	require.NoError(t, err)
	require.NoError(t, j.Record(event(pipeline.EventDoorClosed, 9, 0)))
	require.NoError(t, j.Close())

	j, err = Open(path, "cam1")
	require.NoError(t, err)
	defer j.Close()
	recs, err := j.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "cam0", recs[0].Source)
}

func TestJournal_OpenError(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "journal.db"), "cam0")
	assert.Error(t, err)
}
