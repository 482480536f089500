//go:build !nogocv

package main

import (
	"doorwatch/internal/camera"
	"doorwatch/internal/camera/cvcapture"
	"doorwatch/internal/pipeline"
)

func newCVSource(id string, decoder camera.Decoder) (pipeline.FrameSource, error) {
	return cvcapture.New(id, decoder), nil
}
