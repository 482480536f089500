package detector

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"

	"doorwatch/internal/pipeline"
)

// Scalar is a four channel color value. The fourth channel is reserved and
// sampled means always leave it at zero.
type Scalar struct {
	R        float64 `json:"r" yaml:"r"`
	G        float64 `json:"g" yaml:"g"`
	B        float64 `json:"b" yaml:"b"`
	Reserved float64 `json:"reserved,omitempty" yaml:"reserved,omitempty"`
}

// Add returns the channel-wise sum
func (s Scalar) Add(o Scalar) Scalar {
	return Scalar{s.R + o.R, s.G + o.G, s.B + o.B, s.Reserved + o.Reserved}
}

// Scale multiplies every channel by f
func (s Scalar) Scale(f float64) Scalar {
	return Scalar{s.R * f, s.G * f, s.B * f, s.Reserved * f}
}

// Distance returns the L1 distance between two colors
func (s Scalar) Distance(o Scalar) float64 {
	return floats.Distance(s.slice(), o.slice(), 1)
}

func (s Scalar) slice() []float64 {
	return []float64{s.R, s.G, s.B, s.Reserved}
}

func (s Scalar) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", s.R, s.G, s.B)
}

// ColorProfile is one reference appearance of the closed door
type ColorProfile struct {
	Name  string `json:"name" yaml:"name"`
	Color Scalar `json:"color" yaml:"color"`
}

// DefaultProfiles returns the built in closed-door profiles for the reference
// doorway. Other scenes set their own list under door.profiles in the config
// file.
func DefaultProfiles() []ColorProfile {
	return []ColorProfile{
		{Name: "lights-on", Color: Scalar{R: 115, G: 113, B: 73}},
		{Name: "dim", Color: Scalar{R: 64, G: 62, B: 40}},
		{Name: "off", Color: Scalar{R: 28, G: 28, B: 26}},
	}
}

// MeanColor averages the color grid over region
func MeanColor(img *image.RGBA, region pipeline.Region) Scalar {
	r := region.Rect().Intersect(img.Bounds())
	if r.Empty() {
		return Scalar{}
	}

	var sr, sg, sb float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		row := img.Pix[off : off+4*r.Dx()]
		for i := 0; i < len(row); i += 4 {
			sr += float64(row[i])
			sg += float64(row[i+1])
			sb += float64(row[i+2])
		}
	}
	return Scalar{R: sr, G: sg, B: sb}.Scale(1 / float64(r.Dx()*r.Dy()))
}

// ColorClassifier decides whether a region looks like any known profile
type ColorClassifier struct {
	profiles []ColorProfile
	cutoff   float64
}

// NewColorClassifier creates a classifier. A region matches when its distance
// to the nearest profile is below cutoff.
func NewColorClassifier(profiles []ColorProfile, cutoff float64) (*ColorClassifier, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: at least one color profile is required", pipeline.ErrMalformedConfig)
	}
	if cutoff < 0 {
		return nil, fmt.Errorf("%w: color cutoff must not be negative, got %g", pipeline.ErrMalformedConfig, cutoff)
	}
	return &ColorClassifier{
		profiles: append([]ColorProfile(nil), profiles...),
		cutoff:   cutoff,
	}, nil
}

// Nearest returns the closest profile to c and its distance
func (c *ColorClassifier) Nearest(color Scalar) (ColorProfile, float64) {
	best := math.Inf(1)
	var nearest ColorProfile
	for _, p := range c.profiles {
		if d := color.Distance(p.Color); d < best {
			best, nearest = d, p
		}
	}
	return nearest, best
}

// Classification is the outcome of classifying one region
type Classification struct {
	Mean     Scalar
	Profile  string
	Distance float64
	Matches  bool
}

// Classify samples region of img and compares it with the profiles
func (c *ColorClassifier) Classify(img *image.RGBA, region pipeline.Region) Classification {
	mean := MeanColor(img, region)
	p, d := c.Nearest(mean)
	return Classification{
		Mean:     mean,
		Profile:  p.Name,
		Distance: d,
		Matches:  d < c.cutoff,
	}
}
