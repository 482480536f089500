package motion

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"doorwatch/internal/pipeline"
)

var baseTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func grayWithRects(w, h int, rects ...image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		draw.Draw(g, r, image.NewUniform(color.Gray{Y: 200}), image.Point{}, draw.Src)
	}
	return g
}

func grayFrame(seq int, w, h int, rects ...image.Rectangle) *pipeline.Frame {
	return &pipeline.Frame{
		Seq:       uint64(seq),
		Timestamp: baseTime.Add(time.Duration(seq) * 100 * time.Millisecond),
		Gray:      grayWithRects(w, h, rects...),
	}
}

func blob(x, y, w, h int) Blob {
	return Blob{Box: image.Rect(x, y, x+w, y+h), Area: w * h}
}

// exactConfig disables morphology so blob geometry equals the drawn rectangles
func exactConfig(minArea int) ExtractorConfig {
	return ExtractorConfig{Threshold: 40, DilateSize: 1, ErodeSize: 1, MinArea: minArea}
}
