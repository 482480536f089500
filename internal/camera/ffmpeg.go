package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// FFmpegConfig holds the FFmpeg capture settings
type FFmpegConfig struct {
	Binary      string        // ffmpeg executable (default "ffmpeg")
	FPS         int           // Output frame rate, 0 keeps the source rate
	Width       int           // Requested V4L2 capture width
	Height      int           // Requested V4L2 capture height
	ReadTimeout time.Duration // A read waiting longer than this counts as a dropped frame
	Decoder     Decoder
}

// FFmpegSource reads MJPEG frames from an ffmpeg child process
type FFmpegSource struct {
	device string
	cfg    FFmpegConfig

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	frames  chan []byte
	done    chan struct{}
	logDone chan struct{}
	readErr error
	seq     uint64
}

// NewFFmpegSource creates a source for device. Nothing is started until Open.
func NewFFmpegSource(device string, cfg FFmpegConfig) *FFmpegSource {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	return &FFmpegSource{device: device, cfg: cfg}
}

// Describe implements pipeline.FrameSource
func (s *FFmpegSource) Describe() string { return s.device }

// Open implements pipeline.FrameSource
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("ffmpeg source %s already open", s.device)
	}
	if err := deviceAccessible(s.device); err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrFrameAcquisition, err)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, s.cfg.Binary, ffmpegArgs(s.device, s.cfg.FPS, s.cfg.Width, s.cfg.Height)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: error starting ffmpeg: %v", pipeline.ErrFrameAcquisition, err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.frames = make(chan []byte, 2)
	s.done = make(chan struct{})
	s.logDone = make(chan struct{})
	s.readErr = nil

	go s.logStderr(stderr, s.logDone)

	go s.readLoop(stdout, s.frames, s.done)

	monitoring.Logf("[FFmpegSource] Started ffmpeg for %s (fps: %d)", s.device, s.cfg.FPS)
	return nil
}

// logStderr consumes stderr, surfacing it only in verbose mode. The pipe is
// drained to EOF even when a line is too long to scan so ffmpeg never blocks
// on a full stderr pipe.
func (s *FFmpegSource) logStderr(stderr io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		monitoring.Debugf("[FFmpegSource] %s: %s", s.device, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		monitoring.Debugf("[FFmpegSource] %s: stderr: %v", s.device, err)
	}
	io.Copy(io.Discard, stderr)
}

// readLoop splits the MJPEG stream into frames. When the consumer falls
// behind the oldest buffered frame is dropped so reads stay current.
func (s *FFmpegSource) readLoop(stdout io.Reader, frames chan []byte, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		select {
		case frames <- frame:
		default:
			select {
			case <-frames:
			default:
			}
			frames <- frame
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// ReadFrame implements pipeline.FrameSource
func (s *FFmpegSource) ReadFrame(ctx context.Context) (*pipeline.Frame, error) {
	s.mu.Lock()
	frames, done := s.frames, s.done
	s.mu.Unlock()

	if frames == nil {
		return nil, fmt.Errorf("%w: ffmpeg source %s not open", pipeline.ErrFrameAcquisition, s.device)
	}

	timer := time.NewTimer(s.cfg.ReadTimeout)
	defer timer.Stop()

	var data []byte
	select {
	case data = <-frames:
	case <-done:
		// Drain anything read before the stream ended
		select {
		case data = <-frames:
		default:
			s.mu.Lock()
			err := s.readErr
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: ffmpeg stream %s ended: %v", pipeline.ErrFrameAcquisition, s.device, err)
		}
	case <-timer.C:
		return nil, fmt.Errorf("%w: no frame from %s within %v", pipeline.ErrFrameAcquisition, s.device, s.cfg.ReadTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.seq++
	frame, err := s.cfg.Decoder.Decode(s.seq, time.Now(), data)
	if err != nil {
		return nil, err
	}
	if s.seq%100 == 0 {
		monitoring.Debugf("[FFmpegSource] %s: frame %d (%dx%d)", s.device, s.seq, frame.Width(), frame.Height())
	}
	return frame, nil
}

// Close implements pipeline.FrameSource
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	cmd, cancel, done, logDone := s.cmd, s.cancel, s.done, s.logDone
	s.cmd, s.cancel, s.frames = nil, nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	cancel()
	// Both pipes must be fully read before Wait closes them
	<-done
	<-logDone
	err := cmd.Wait()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("error stopping ffmpeg for %s: %w", s.device, err)
	}
	monitoring.Logf("[FFmpegSource] Stopped ffmpeg for %s", s.device)
	return nil
}

var _ pipeline.FrameSource = (*FFmpegSource)(nil)
