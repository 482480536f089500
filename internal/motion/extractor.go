package motion

import (
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/gift"

	"doorwatch/internal/pipeline"
)

// Blob is a connected region of changed pixels
type Blob struct {
	Box  image.Rectangle // Bounding box
	Area int             // Number of changed pixels in the component
}

// Center returns the bounding box centre using integer division
func (b Blob) Center() pipeline.Point {
	return pipeline.Point{
		X: b.Box.Min.X + b.Box.Dx()/2,
		Y: b.Box.Min.Y + b.Box.Dy()/2,
	}
}

// ExtractorConfig holds the change extraction tunables
type ExtractorConfig struct {
	Threshold  uint8 // Intensity difference above which a pixel counts as changed
	DilateSize int   // Dilation kernel size, odd
	ErodeSize  int   // Erosion kernel size, odd and at least DilateSize
	MinArea    int   // Blobs must have strictly more pixels than this
}

// DefaultExtractorConfig returns the blob extraction defaults at 1920x1080
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Threshold:  40,
		DilateSize: 5,
		ErodeSize:  7,
		MinArea:    20000,
	}
}

// DoorExtractorConfig returns the whole-frame change count defaults
func DoorExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Threshold:  20,
		DilateSize: 3,
		ErodeSize:  7,
	}
}

// Validate checks kernel sizes and limits
func (c ExtractorConfig) Validate() error {
	if c.DilateSize < 1 || c.DilateSize%2 == 0 {
		return fmt.Errorf("%w: dilate size must be odd and positive, got %d", pipeline.ErrMalformedConfig, c.DilateSize)
	}
	if c.ErodeSize < 1 || c.ErodeSize%2 == 0 {
		return fmt.Errorf("%w: erode size must be odd and positive, got %d", pipeline.ErrMalformedConfig, c.ErodeSize)
	}
	// A smaller erosion would leave every isolated pixel grown by the dilation
	if c.ErodeSize < c.DilateSize {
		return fmt.Errorf("%w: erode size %d smaller than dilate size %d", pipeline.ErrMalformedConfig, c.ErodeSize, c.DilateSize)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("%w: min area must not be negative, got %d", pipeline.ErrMalformedConfig, c.MinArea)
	}
	return nil
}

// Extractor turns a pair of gray frames into a cleaned change mask
// It reuses its buffers between calls and is not safe for concurrent use.
type Extractor struct {
	cfg    ExtractorConfig
	filter *gift.GIFT
	diff   *image.Gray
	mask   *image.Gray
	labels []int32
	stack  []int
}

// NewExtractor creates an extractor with the given configuration
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg: cfg,
		filter: gift.New(
			gift.Maximum(cfg.DilateSize, true),
			gift.Minimum(cfg.ErodeSize, true),
		),
	}, nil
}

// Config returns the extractor configuration
func (e *Extractor) Config() ExtractorConfig {
	return e.cfg
}

// Mask computes the binarized, dilated then eroded change mask of two frames.
// Set pixels are 255. The returned image is owned by the extractor and is
// overwritten by the next call.
func (e *Extractor) Mask(prev, cur *image.Gray) (*image.Gray, error) {
	if prev.Bounds().Size() != cur.Bounds().Size() {
		return nil, fmt.Errorf("%w: previous %v, current %v", pipeline.ErrDimensionMismatch, prev.Bounds(), cur.Bounds())
	}

	size := cur.Bounds().Size()
	if e.diff == nil || e.diff.Bounds().Size() != size {
		e.diff = image.NewGray(image.Rectangle{Max: size})
		e.mask = image.NewGray(e.filter.Bounds(e.diff.Bounds()))
	}

	threshold := e.cfg.Threshold
	pb, cb := prev.Bounds(), cur.Bounds()
	for y := 0; y < size.Y; y++ {
		po := prev.PixOffset(pb.Min.X, pb.Min.Y+y)
		co := cur.PixOffset(cb.Min.X, cb.Min.Y+y)
		do := e.diff.PixOffset(0, y)
		prow := prev.Pix[po : po+size.X]
		crow := cur.Pix[co : co+size.X]
		drow := e.diff.Pix[do : do+size.X]
		for x := range drow {
			d := int(crow[x]) - int(prow[x])
			if d < 0 {
				d = -d
			}
			if d > int(threshold) {
				drow[x] = 255
			} else {
				drow[x] = 0
			}
		}
	}

	e.filter.Draw(e.mask, e.diff)
	return e.mask, nil
}

// CountChanged returns the number of set pixels in the cleaned change mask
func (e *Extractor) CountChanged(prev, cur *image.Gray) (int, error) {
	mask, err := e.Mask(prev, cur)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n, nil
}

// Extract returns the blobs larger than MinArea, sorted by top-left corner then area
func (e *Extractor) Extract(prev, cur *image.Gray) ([]Blob, error) {
	mask, err := e.Mask(prev, cur)
	if err != nil {
		return nil, err
	}

	blobs := e.components(mask)
	sort.Slice(blobs, func(i, j int) bool {
		a, b := blobs[i].Box.Min, blobs[j].Box.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return blobs[i].Area < blobs[j].Area
	})
	return blobs, nil
}

// components labels 8-connected regions of set pixels with a flood fill
func (e *Extractor) components(mask *image.Gray) []Blob {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if cap(e.labels) < w*h {
		e.labels = make([]int32, w*h)
	}
	labels := e.labels[:w*h]
	for i := range labels {
		labels[i] = 0
	}

	var blobs []Blob
	var label int32
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if labels[i] != 0 || mask.Pix[mask.PixOffset(b.Min.X+x, b.Min.Y+y)] == 0 {
				continue
			}

			label++
			labels[i] = label
			box := image.Rect(x, y, x+1, y+1)
			area := 0
			stack := append(e.stack[:0], i)
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := p%w, p/w
				area++
				if px < box.Min.X {
					box.Min.X = px
				}
				if px >= box.Max.X {
					box.Max.X = px + 1
				}
				if py >= box.Max.Y {
					box.Max.Y = py + 1
				}

				for dy := -1; dy <= 1; dy++ {
					ny := py + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						nx := px + dx
						if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
							continue
						}
						n := ny*w + nx
						if labels[n] != 0 || mask.Pix[mask.PixOffset(b.Min.X+nx, b.Min.Y+ny)] == 0 {
							continue
						}
						labels[n] = label
						stack = append(stack, n)
					}
				}
			}
			e.stack = stack

			if area > e.cfg.MinArea {
				blobs = append(blobs, Blob{Box: box.Add(b.Min), Area: area})
			}
		}
	}
	return blobs
}
