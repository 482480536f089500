package main

import (
	"fmt"

	"doorwatch/internal/camera"
	"doorwatch/internal/config"
	"doorwatch/internal/pipeline"
)

// newSource picks the capture method for the configured source
func newSource(cfg *config.Config) (pipeline.FrameSource, error) {
	decoder := camera.Decoder{MaxWidth: cfg.MaxWidth}

	method := cfg.Capture
	if method == config.CaptureAuto {
		switch camera.Classify(cfg.Source) {
		case camera.KindDevice:
			method = config.CaptureGoCV
		case camera.KindSnapshot:
			method = config.CaptureSnapshot
		default:
			method = config.CaptureFFmpeg
		}
	}

	switch method {
	case config.CaptureFFmpeg:
		return camera.NewFFmpegSource(cfg.Source, camera.FFmpegConfig{
			Binary:  cfg.FFmpegPath,
			FPS:     cfg.FPS,
			Decoder: decoder,
		}), nil
	case config.CaptureSnapshot:
		return camera.NewSnapshotSource(cfg.Source, camera.SnapshotConfig{
			Interval: cfg.PollInterval,
			Decoder:  decoder,
		}), nil
	case config.CaptureGoCV:
		return newCVSource(cfg.Source, decoder)
	default:
		return nil, fmt.Errorf("%w: unknown capture method %q", pipeline.ErrMalformedConfig, method)
	}
}
