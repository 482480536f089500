//go:build nogocv

package main

import (
	"fmt"

	"doorwatch/internal/camera"
	"doorwatch/internal/pipeline"
)

func newCVSource(id string, decoder camera.Decoder) (pipeline.FrameSource, error) {
	return nil, fmt.Errorf("%w: built without OpenCV, use -capture=ffmpeg for %s", pipeline.ErrMalformedConfig, id)
}
