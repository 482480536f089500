// Package config loads the detector configuration: defaults in code, an
// optional YAML file over them, and command-line flags over both.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"doorwatch/internal/actuator"
	"doorwatch/internal/detector"
	"doorwatch/internal/motion"
	"doorwatch/internal/pipeline"
)

// Reference resolution that every pixel threshold, zone and region is
// expressed in
const (
	ReferenceWidth  = 1920
	ReferenceHeight = 1080
)

// Capture methods
const (
	CaptureAuto     = "auto"
	CaptureFFmpeg   = "ffmpeg"
	CaptureGoCV     = "gocv"
	CaptureSnapshot = "snapshot"
)

// Config is the full detector configuration. It is immutable once the
// pipeline starts.
type Config struct {
	Source        string        `yaml:"source"`
	Capture       string        `yaml:"capture"`
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	FPS           int           `yaml:"fps"`
	MaxWidth      int           `yaml:"max_width"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	JournalPath   string        `yaml:"journal_path"`
	Verbose       bool          `yaml:"verbose"`

	Direction DirectionConfig `yaml:"direction"`
	Door      DoorConfig      `yaml:"door"`
	Actuator  ActuatorConfig  `yaml:"actuator"`
}

// DirectionConfig configures the walk-through direction detector. Pixel
// values are in reference resolution.
type DirectionConfig struct {
	Enabled            bool           `yaml:"enabled"`
	Reverse            bool           `yaml:"reverse"`
	Threshold          int            `yaml:"threshold"`
	DilateSize         int            `yaml:"dilate_size"`
	ErodeSize          int            `yaml:"erode_size"`
	MinArea            int            `yaml:"min_area"`
	MaxAreaDiff        float64        `yaml:"max_area_diff"`
	MinHeight          float64        `yaml:"min_height"`
	MaxDistance        float64        `yaml:"max_distance"`
	ActivationDistance float64        `yaml:"activation_distance"`
	Cooldown           time.Duration  `yaml:"cooldown"`
	PositiveZone       pipeline.Range `yaml:"positive_zone"`
	NegativeZone       pipeline.Range `yaml:"negative_zone"`
}

// DoorConfig configures the door-left-open alarm
type DoorConfig struct {
	Enabled        bool                    `yaml:"enabled"`
	Threshold      int                     `yaml:"threshold"`
	DilateSize     int                     `yaml:"dilate_size"`
	ErodeSize      int                     `yaml:"erode_size"`
	MovementCutoff int                     `yaml:"movement_cutoff"`
	ColorCutoff    float64                 `yaml:"color_cutoff"`
	FramesToWait   int                     `yaml:"frames_to_wait"`
	StatusInterval int                     `yaml:"status_interval"`
	LeftDoor       pipeline.Region         `yaml:"left_door"`
	RightDoor      pipeline.Region         `yaml:"right_door"`
	Profiles       []detector.ColorProfile `yaml:"profiles"`
}

// ActuatorConfig selects the bridges events are delivered to. Every
// configured bridge receives every event; with none configured events are
// only logged.
type ActuatorConfig struct {
	GRPCEndpoint string               `yaml:"grpc_endpoint"`
	GRPCService  string               `yaml:"grpc_service"`
	WebSocketURL string               `yaml:"websocket_url"`
	JWTSecret    string               `yaml:"jwt_secret"`
	Name         string               `yaml:"name"`
	SerialPath   string               `yaml:"serial_path"`
	Serial       actuator.PortOptions `yaml:"serial"`
	SerialLines  map[string]string    `yaml:"serial_commands"`
	Commands     map[string][]string  `yaml:"commands"`
	Telegram     TelegramConfig       `yaml:"telegram"`
	QueueSize    int                  `yaml:"queue_size"`
	CallTimeout  time.Duration        `yaml:"call_timeout"`
}

// TelegramConfig enables chat notifications. Both the token and the chat ID
// are needed.
type TelegramConfig struct {
	BotToken string        `yaml:"bot_token"`
	ChatID   string        `yaml:"chat_id"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// Default returns the built in configuration
func Default() *Config {
	ext := motion.DefaultExtractorConfig()
	corr := motion.DefaultCorrelatorConfig()
	door := motion.DoorExtractorConfig()

	return &Config{
		Capture:       CaptureAuto,
		FFmpegPath:    "ffmpeg",
		MaxWidth:      0,
		PollInterval:  500 * time.Millisecond,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 30 * time.Second,
		StatsInterval: 5 * time.Minute,
		Direction: DirectionConfig{
			Enabled:            true,
			Threshold:          int(ext.Threshold),
			DilateSize:         ext.DilateSize,
			ErodeSize:          ext.ErodeSize,
			MinArea:            ext.MinArea,
			MaxAreaDiff:        corr.MaxAreaRatioDiff,
			MinHeight:          corr.MinHeight,
			MaxDistance:        corr.MaxDistance,
			ActivationDistance: 100,
			Cooldown:           6 * time.Second,
			PositiveZone:       pipeline.Range{Low: 840, High: 1680},
			NegativeZone:       pipeline.Range{Low: 240, High: 1080},
		},
		Door: DoorConfig{
			Enabled:        true,
			Threshold:      int(door.Threshold),
			DilateSize:     door.DilateSize,
			ErodeSize:      door.ErodeSize,
			MovementCutoff: 100,
			ColorCutoff:    40,
			FramesToWait:   300,
			StatusInterval: 30,
			LeftDoor:       pipeline.Region{X: 440, Y: 270, Width: 90, Height: 230},
			RightDoor:      pipeline.Region{X: 540, Y: 270, Width: 90, Height: 230},
			Profiles:       detector.DefaultProfiles(),
		},
		Actuator: ActuatorConfig{
			Name:        "doorwatch",
			Telegram:    TelegramConfig{Cooldown: 30 * time.Second},
			QueueSize:   64,
			CallTimeout: 5 * time.Second,
		},
	}
}

// LoadFile decodes the YAML file at path over cfg. Keys missing from the file
// keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", pipeline.ErrMalformedConfig, path, err)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{pipeline.ErrMalformedConfig}, args...)...)
}

// Validate checks everything that does not depend on the frame size
func (c *Config) Validate() error {
	if c.Source == "" {
		return malformed("no source configured")
	}
	switch c.Capture {
	case CaptureAuto, CaptureFFmpeg, CaptureGoCV, CaptureSnapshot:
	default:
		return malformed("unknown capture method %q", c.Capture)
	}
	if !c.Direction.Enabled && !c.Door.Enabled {
		return malformed("both detectors are disabled")
	}
	if c.FPS < 0 || c.MaxWidth < 0 {
		return malformed("fps and max width must not be negative")
	}

	if c.Direction.Enabled {
		d := c.Direction
		if err := extractorConfig(d.Threshold, d.DilateSize, d.ErodeSize, d.MinArea).Validate(); err != nil {
			return err
		}
		if d.Threshold < 0 || d.Threshold > 255 {
			return malformed("direction threshold %d outside 0-255", d.Threshold)
		}
		if d.MaxAreaDiff < 0 || d.MaxAreaDiff > 1 {
			return malformed("max area diff %g outside 0-1", d.MaxAreaDiff)
		}
		if d.MinHeight < 0 || d.MaxDistance < 0 {
			return malformed("min height and max distance must not be negative")
		}
		if d.ActivationDistance <= 0 {
			return malformed("activation distance must be positive, got %g", d.ActivationDistance)
		}
		if d.Cooldown < 0 {
			return malformed("cooldown must not be negative, got %v", d.Cooldown)
		}
		if d.PositiveZone.Low > d.PositiveZone.High {
			return malformed("positive zone %v is inverted", d.PositiveZone)
		}
		if d.NegativeZone.Low > d.NegativeZone.High {
			return malformed("negative zone %v is inverted", d.NegativeZone)
		}
	}

	if c.Door.Enabled {
		d := c.Door
		if err := extractorConfig(d.Threshold, d.DilateSize, d.ErodeSize, 0).Validate(); err != nil {
			return err
		}
		if d.Threshold < 0 || d.Threshold > 255 {
			return malformed("door threshold %d outside 0-255", d.Threshold)
		}
		if d.MovementCutoff < 0 || d.ColorCutoff < 0 || d.FramesToWait < 0 || d.StatusInterval < 0 {
			return malformed("door cutoffs and frame counts must not be negative")
		}
		if len(d.Profiles) == 0 {
			return malformed("no door color profiles")
		}
		if d.LeftDoor.Width <= 0 || d.LeftDoor.Height <= 0 || d.RightDoor.Width <= 0 || d.RightDoor.Height <= 0 {
			return malformed("door regions must have a positive size")
		}
	}

	if tg := c.Actuator.Telegram; (tg.BotToken == "") != (tg.ChatID == "") {
		return malformed("telegram needs both bot_token and chat_id")
	}

	for kind := range c.Actuator.Commands {
		if !knownKind(kind) {
			return malformed("command for unknown event %q", kind)
		}
	}
	for kind := range c.Actuator.SerialLines {
		if !knownKind(kind) {
			return malformed("serial command for unknown event %q", kind)
		}
	}
	return nil
}

func knownKind(kind string) bool {
	switch pipeline.EventKind(kind) {
	case pipeline.EventDoorLeftOpen, pipeline.EventDoorClosed, pipeline.EventMotionPositive, pipeline.EventMotionNegative:
		return true
	}
	return false
}

func extractorConfig(threshold, dilate, erode, minArea int) motion.ExtractorConfig {
	return motion.ExtractorConfig{
		Threshold:  uint8(threshold),
		DilateSize: dilate,
		ErodeSize:  erode,
		MinArea:    minArea,
	}
}

// Scaled holds the detector configurations for an actual frame size
type Scaled struct {
	Direction motion.Config
	Door      detector.DoorConfig
}

// Scale converts the reference-resolution settings to a width x height frame.
// Distances and zones scale with the width ratio, heights with the height
// ratio, and areas and pixel counts with the area ratio.
func (c *Config) Scale(width, height int) Scaled {
	sx := float64(width) / ReferenceWidth
	sy := float64(height) / ReferenceHeight
	area := sx * sy

	d := c.Direction
	o := c.Door

	return Scaled{
		Direction: motion.Config{
			Extractor: extractorConfig(d.Threshold, d.DilateSize, d.ErodeSize, roundInt(float64(d.MinArea)*area)),
			Correlator: motion.CorrelatorConfig{
				MaxAreaRatioDiff: d.MaxAreaDiff,
				MinHeight:        d.MinHeight * sy,
				MaxDistance:      d.MaxDistance * sx,
			},
			ActivationDistance: d.ActivationDistance * sx,
			PositiveZone:       d.PositiveZone.Scale(sx),
			NegativeZone:       d.NegativeZone.Scale(sx),
			Cooldown:           d.Cooldown,
		},
		Door: detector.DoorConfig{
			Extractor:      extractorConfig(o.Threshold, o.DilateSize, o.ErodeSize, 0),
			MovementCutoff: roundInt(float64(o.MovementCutoff) * area),
			ColorCutoff:    o.ColorCutoff,
			Profiles:       o.Profiles,
			LeftDoor:       o.LeftDoor.Scale(sx, sy),
			RightDoor:      o.RightDoor.Scale(sx, sy),
			FramesToWait:   o.FramesToWait,
			StatusInterval: o.StatusInterval,
		},
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
