// Package cvcapture reads frames from capture devices and streams through OpenCV
package cvcapture

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"doorwatch/internal/camera"
	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// Source wraps a gocv.VideoCapture
type Source struct {
	id      string
	decoder camera.Decoder
	capture *gocv.VideoCapture
	img     gocv.Mat
	seq     uint64
}

// New creates a source for a device index ("0") or a stream/file identifier
func New(id string, decoder camera.Decoder) *Source {
	return &Source{id: id, decoder: decoder}
}

// Describe implements pipeline.FrameSource
func (s *Source) Describe() string { return s.id }

// Open implements pipeline.FrameSource
func (s *Source) Open(ctx context.Context) error {
	if s.capture != nil {
		return fmt.Errorf("capture %s already open", s.id)
	}

	var device interface{} = s.id
	if n, err := strconv.Atoi(s.id); err == nil {
		device = n
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("%w: failed to open video capture %s: %v", pipeline.ErrFrameAcquisition, s.id, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: video capture %s is not opened", pipeline.ErrFrameAcquisition, s.id)
	}

	// Keep only the newest frame buffered so reads stay current
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	s.capture = capture
	s.img = gocv.NewMat()
	monitoring.Logf("[CVCapture] Opened %s (%.0fx%.0f)", s.id,
		capture.Get(gocv.VideoCaptureFrameWidth), capture.Get(gocv.VideoCaptureFrameHeight))
	return nil
}

// ReadFrame implements pipeline.FrameSource. Reads block in OpenCV and do not
// observe ctx.
func (s *Source) ReadFrame(ctx context.Context) (*pipeline.Frame, error) {
	if s.capture == nil {
		return nil, fmt.Errorf("%w: capture %s not open", pipeline.ErrFrameAcquisition, s.id)
	}
	if ok := s.capture.Read(&s.img); !ok || s.img.Empty() {
		return nil, fmt.Errorf("%w: failed to read frame from %s", pipeline.ErrFrameAcquisition, s.id)
	}
	if s.img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: unexpected mat type %v from %s", pipeline.ErrFrameAcquisition, s.img.Type(), s.id)
	}

	img, err := s.img.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: convert frame: %v", pipeline.ErrFrameAcquisition, err)
	}

	s.seq++
	return pipeline.NewFrame(s.seq, time.Now(), s.decoder.ToRGBA(img)), nil
}

// Close implements pipeline.FrameSource
func (s *Source) Close() error {
	if s.capture == nil {
		return nil
	}
	s.img.Close()
	err := s.capture.Close()
	s.capture = nil
	if err != nil {
		return fmt.Errorf("error closing capture %s: %w", s.id, err)
	}
	return nil
}

var _ pipeline.FrameSource = (*Source)(nil)
