package config

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// RegisterFlags binds command-line flags to cfg. Each flag defaults to the
// current value in cfg.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Source, "source", c.Source, "Camera source: device index, RTSP/HTTP URL, V4L2 path, file or snapshot URL")
	fs.StringVar(&c.Capture, "capture", c.Capture, "Capture method: auto, ffmpeg, gocv or snapshot")
	fs.StringVar(&c.FFmpegPath, "ffmpeg", c.FFmpegPath, "Path to the ffmpeg binary")
	fs.IntVar(&c.FPS, "fps", c.FPS, "Capture frame rate, 0 keeps the source rate")
	fs.IntVar(&c.MaxWidth, "max-width", c.MaxWidth, "Downscale frames wider than this, 0 disables")
	fs.DurationVar(&c.StatsInterval, "stats-interval", c.StatsInterval, "How often to log pipeline stats, 0 disables")
	fs.StringVar(&c.JournalPath, "journal", c.JournalPath, "SQLite event journal path, empty disables it")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Verbose mode")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "Verbose mode (shorthand)")

	d := &c.Direction
	fs.BoolVar(&d.Enabled, "direction", d.Enabled, "Enable the walk-through direction detector")
	fs.BoolVar(&d.Reverse, "reverse", d.Reverse, "Swap the positive and negative motion events")
	fs.IntVar(&d.MinArea, "min-size", d.MinArea, "The minimum size of a box for it to be considered a person")
	fs.Float64Var(&d.MinHeight, "min-height", d.MinHeight, "The highest a box can go while still being considered (low numbers == high pixels)")
	fs.Float64Var(&d.MaxDistance, "max-distance", d.MaxDistance, "The maximum movement between centers of two boxes for them to be considered as the same box moving")
	fs.Float64Var(&d.MaxAreaDiff, "max-area-diff", d.MaxAreaDiff, "The maximum change in area between two boxes for them to be considered as the same box")
	fs.Float64Var(&d.ActivationDistance, "activation-distance", d.ActivationDistance, "Distance a person must travel in one direction before the event fires")
	fs.DurationVar(&d.Cooldown, "cooldown", d.Cooldown, "Minimum time between two events of the same direction")
	fs.Var(&d.PositiveZone, "positive-zone", "Horizontal range low-high where positive travel is credited")
	fs.Var(&d.NegativeZone, "negative-zone", "Horizontal range low-high where negative travel is credited")

	o := &c.Door
	fs.BoolVar(&o.Enabled, "door", o.Enabled, "Enable the door-left-open alarm")
	fs.IntVar(&o.MovementCutoff, "movement-cutoff", o.MovementCutoff, "Changed pixel count above which a frame counts as motion")
	fs.Float64Var(&o.ColorCutoff, "color-cutoff", o.ColorCutoff, "Color distance below which a door region counts as closed")
	fs.IntVar(&o.FramesToWait, "frames-to-wait", o.FramesToWait, "Frames without motion and with the door open before alarming")

	a := &c.Actuator
	fs.StringVar(&a.GRPCEndpoint, "grpc", a.GRPCEndpoint, "gRPC actuator endpoint (host:port)")
	fs.StringVar(&a.WebSocketURL, "ws", a.WebSocketURL, "Websocket actuator URL")
	fs.StringVar(&a.SerialPath, "serial", a.SerialPath, "Serial relay device path")
	fs.StringVar(&a.Telegram.ChatID, "telegram-chat", a.Telegram.ChatID, "Telegram chat ID to notify (token from DOORWATCH_TELEGRAM_TOKEN)")
}

// Parse builds the configuration from args. The -config file, if given, is
// applied over the defaults and the remaining flags over the file. A single
// positional argument is taken as the source.
func Parse(name string, args []string, output io.Writer) (*Config, error) {
	var path string

	// First pass only finds the config file and rejects bad flags early
	probe := flag.NewFlagSet(name, flag.ContinueOnError)
	probe.SetOutput(output)
	Default().RegisterFlags(probe)
	probe.StringVar(&path, "config", "", "YAML configuration file")
	if err := probe.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	fs.StringVar(&path, "config", path, "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.Source = fs.Arg(0)
	default:
		return nil, malformed("expected at most one source argument, got %d", fs.NArg())
	}

	// Keep the bot token out of argv and config files when possible
	if cfg.Actuator.Telegram.BotToken == "" {
		cfg.Actuator.Telegram.BotToken = os.Getenv("DOORWATCH_TELEGRAM_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Summary is a one-line description for the startup log
func (c *Config) Summary() string {
	return fmt.Sprintf("source=%s capture=%s direction=%t door=%t journal=%q",
		c.Source, c.Capture, c.Direction.Enabled, c.Door.Enabled, c.JournalPath)
}
