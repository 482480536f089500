package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"time"
)

var (
	errFakeRead = errors.New("fake read failure")
	fixedTime   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// fakeSource replays a script of frames; a nil entry is a failed read
type fakeSource struct {
	script   []*Frame
	pos      int
	opens    int
	closes   int
	openErrs int // number of Open calls that fail before succeeding
}

func (s *fakeSource) Open(ctx context.Context) error {
	s.opens++
	if s.openErrs > 0 {
		s.openErrs--
		return errors.New("fake open failure")
	}
	return nil
}

func (s *fakeSource) ReadFrame(ctx context.Context) (*Frame, error) {
	if s.pos >= len(s.script) {
		return nil, errFakeRead
	}
	f := s.script[s.pos]
	s.pos++
	if f == nil {
		return nil, errFakeRead
	}
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closes++
	return nil
}

func (s *fakeSource) Describe() string { return "fake://camera" }

func solidFrame(seq uint64, w, h int, c color.RGBA) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return NewFrame(seq, time.Unix(int64(seq), 0), img)
}

func noWait(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
}

// countingDetector records the frame pairs it was given
type countingDetector struct {
	pairs  [][2]uint64
	emit   EventKind
	failAt uint64
}

func (d *countingDetector) Name() string { return "counting" }

func (d *countingDetector) Process(prev, cur *Frame) ([]*Event, error) {
	if d.failAt != 0 && cur.Seq == d.failAt {
		return nil, errors.New("boom")
	}
	d.pairs = append(d.pairs, [2]uint64{prev.Seq, cur.Seq})
	if d.emit != "" {
		return []*Event{NewEvent(d.emit, cur.Seq, cur.Timestamp)}, nil
	}
	return nil, nil
}
