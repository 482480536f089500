package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"time"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"

	"doorwatch/internal/pipeline"
)

// Decoder turns encoded images into frames, optionally downscaling them
type Decoder struct {
	// MaxWidth limits the frame width; larger images are scaled down keeping
	// the aspect ratio. 0 keeps the native size.
	MaxWidth int
}

// Decode decodes data and builds frame seq captured at ts
func (d Decoder) Decode(seq uint64, ts time.Time, data []byte) (*pipeline.Frame, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame %d: %v", pipeline.ErrFrameAcquisition, seq, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty %s frame %d", pipeline.ErrFrameAcquisition, format, seq)
	}
	return pipeline.NewFrame(seq, ts, d.ToRGBA(img)), nil
}

// ToRGBA converts img to a zero-origin RGBA image, scaling it down to MaxWidth
func (d Decoder) ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if d.MaxWidth > 0 && w > d.MaxWidth {
		h = h * d.MaxWidth / w
		if h < 1 {
			h = 1
		}
		w = d.MaxWidth
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
