package actuator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// PortOptions describes the serial connection parameters of the relay board
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Normalize validates the options and applies defaults for any unset values
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// SerialBridgeConfig holds configuration for the serial relay
type SerialBridgeConfig struct {
	Path    string
	Options PortOptions
	// Commands maps an event to the line written to the port. Events without
	// an entry write their kind, e.g. "door_left_open".
	Commands map[pipeline.EventKind]string
}

// PortOpener opens a serial port; replaced in tests
type PortOpener func(path string, mode *serial.Mode) (io.WriteCloser, error)

// OpenSerialPort opens a real serial port
func OpenSerialPort(path string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(path, mode)
}

// SerialBridge drives a relay or sounder board over a serial line. Each event
// writes one newline terminated command. The port is opened on first use and
// reopened after a write error.
type SerialBridge struct {
	cfg  SerialBridgeConfig
	mode *serial.Mode
	open PortOpener

	mu   sync.Mutex
	port io.WriteCloser
}

// NewSerialBridge validates the port options. A nil opener uses OpenSerialPort.
func NewSerialBridge(cfg SerialBridgeConfig, open PortOpener) (*SerialBridge, error) {
	mode, err := cfg.Options.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial relay %s: %w", cfg.Path, err)
	}
	if open == nil {
		open = OpenSerialPort
	}
	return &SerialBridge{cfg: cfg, mode: mode, open: open}, nil
}

func (b *SerialBridge) command(kind pipeline.EventKind) string {
	if c, ok := b.cfg.Commands[kind]; ok {
		return c
	}
	return string(kind)
}

func (b *SerialBridge) write(ctx context.Context, kind pipeline.EventKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		port, err := b.open(b.cfg.Path, b.mode)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", pipeline.ErrActuatorCall, b.cfg.Path, err)
		}
		b.port = port
		monitoring.Logf("[SerialBridge] Opened %s at %d baud", b.cfg.Path, b.mode.BaudRate)
	}

	line := b.command(kind) + "\n"
	if _, err := io.WriteString(b.port, line); err != nil {
		b.port.Close()
		b.port = nil
		return fmt.Errorf("%w: write %s: %v", pipeline.ErrActuatorCall, b.cfg.Path, err)
	}
	return nil
}

func (b *SerialBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.write(ctx, pipeline.EventDoorLeftOpen)
}

func (b *SerialBridge) OnDoorClosed(ctx context.Context) error {
	return b.write(ctx, pipeline.EventDoorClosed)
}

func (b *SerialBridge) OnMotionPositive(ctx context.Context) error {
	return b.write(ctx, pipeline.EventMotionPositive)
}

func (b *SerialBridge) OnMotionNegative(ctx context.Context) error {
	return b.write(ctx, pipeline.EventMotionNegative)
}

// Close closes the port if it is open
func (b *SerialBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

var _ Bridge = (*SerialBridge)(nil)
