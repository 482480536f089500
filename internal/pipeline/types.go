package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Frame represents a captured video frame
// Gray and Color always share the same bounds.
type Frame struct {
	Seq       uint64      // Frame sequence number
	Timestamp time.Time   // Capture timestamp
	Gray      *image.Gray // Intensity grid used for change extraction
	Color     *image.RGBA // Color grid used for region sampling
}

// NewFrame builds a Frame from a color image, deriving the gray grid from it
func NewFrame(seq uint64, ts time.Time, img *image.RGBA) *Frame {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.RGBAAt(x, y)).(color.Gray))
		}
	}
	return &Frame{
		Seq:       seq,
		Timestamp: ts,
		Gray:      gray,
		Color:     img,
	}
}

// Bounds returns the frame rectangle
func (f *Frame) Bounds() image.Rectangle {
	return f.Gray.Bounds()
}

// Width returns the frame width in pixels
func (f *Frame) Width() int { return f.Gray.Bounds().Dx() }

// Height returns the frame height in pixels
func (f *Frame) Height() int { return f.Gray.Bounds().Dy() }

// Point is an integer position in frame coordinates
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p translated by q
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns the vector from q to p
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Dist returns the Euclidean distance between p and q
func (p Point) Dist(q Point) float64 {
	d := p.Sub(q)
	return math.Hypot(float64(d.X), float64(d.Y))
}

// Region is an axis-aligned rectangle in frame coordinates
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Rect converts the region to an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Scale multiplies the origin and size by the given horizontal and vertical factors
func (r Region) Scale(sx, sy float64) Region {
	return Region{
		X:      int(math.Round(float64(r.X) * sx)),
		Y:      int(math.Round(float64(r.Y) * sy)),
		Width:  int(math.Round(float64(r.Width) * sx)),
		Height: int(math.Round(float64(r.Height) * sy)),
	}
}

// Translate moves the region by (dx, dy)
func (r Region) Translate(dx, dy int) Region {
	return Region{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Within reports whether the region is non-empty and fully inside bounds
func (r Region) Within(bounds image.Rectangle) bool {
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return r.Rect().In(bounds)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Range is a half-open interval [Low, High) of horizontal position
type Range struct {
	Low  float64
	High float64
}

// NewRange creates a range, rejecting inverted bounds
func NewRange(low, high float64) (Range, error) {
	if low > high {
		return Range{}, fmt.Errorf("%w: range low %g greater than high %g", ErrMalformedConfig, low, high)
	}
	return Range{Low: low, High: high}, nil
}

// ParseRange parses "low-high". An empty string yields def and a single number is
// taken as the high bound with def.Low kept.
func ParseRange(s string, def Range) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NewRange(def.Low, def.High)
	}

	// A leading '-' belongs to a negative low bound, not the separator
	sep := strings.Index(s[1:], "-")
	if sep < 0 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Range{}, fmt.Errorf("%w: invalid range %q: %v", ErrMalformedConfig, s, err)
		}
		return NewRange(def.Low, v)
	}
	sep++

	low, err := strconv.ParseFloat(strings.TrimSpace(s[:sep]), 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: invalid range low %q: %v", ErrMalformedConfig, s, err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(s[sep+1:]), 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: invalid range high %q: %v", ErrMalformedConfig, s, err)
	}
	return NewRange(low, high)
}

// Contains reports whether v lies in [Low, High)
func (r Range) Contains(v float64) bool {
	return r.Low <= v && v < r.High
}

// Scale multiplies both bounds by f
func (r Range) Scale(f float64) Range {
	return Range{Low: r.Low * f, High: r.High * f}
}

// Translate shifts both bounds by d
func (r Range) Translate(d float64) Range {
	return Range{Low: r.Low + d, High: r.High + d}
}

func (r Range) String() string {
	return fmt.Sprintf("%g-%g", r.Low, r.High)
}

// Set implements flag.Value. The current value supplies the default for a
// missing bound.
func (r *Range) Set(s string) error {
	v, err := ParseRange(s, *r)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UnmarshalYAML accepts either "low-high" or a {low, high} mapping
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return r.Set(node.Value)
	}
	var raw struct {
		Low  *float64 `yaml:"low"`
		High *float64 `yaml:"high"`
	}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: range: %v", ErrMalformedConfig, err)
	}
	low, high := r.Low, r.High
	if raw.Low != nil {
		low = *raw.Low
	}
	if raw.High != nil {
		high = *raw.High
	}
	v, err := NewRange(low, high)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Direction identifies a monitored direction of horizontal travel
type Direction int

const (
	// DirectionPositive is travel towards increasing x (left to right in camera view)
	DirectionPositive Direction = iota
	// DirectionNegative is travel towards decreasing x
	DirectionNegative
)

func (d Direction) String() string {
	switch d {
	case DirectionPositive:
		return "positive"
	case DirectionNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// EventKind is the abstract event delivered to the actuator
type EventKind string

const (
	EventDoorLeftOpen   EventKind = "door_left_open"
	EventDoorClosed     EventKind = "door_closed"
	EventMotionPositive EventKind = "motion_positive"
	EventMotionNegative EventKind = "motion_negative"
)

// Event is a discrete, debounced decision produced by a tick
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	FrameSeq  uint64    `json:"frame_seq"`
	Distance  float64   `json:"distance,omitempty"` // Accumulated distance for motion events
	Position  float64   `json:"position,omitempty"` // Extreme x position for motion events
}

// NewEvent creates an event with a fresh identifier
func NewEvent(kind EventKind, seq uint64, ts time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: ts,
		FrameSeq:  seq,
	}
}

// Stats contains pipeline counters
type Stats struct {
	Ticks         uint64
	FramesDropped uint64
	Reconnects    uint64
	Events        uint64
	LastFrameSeq  uint64
	LastFrameTime time.Time
}
