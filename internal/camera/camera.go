package camera

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Kind is the acquisition method a source identifier calls for
type Kind int

const (
	// KindDevice is a numeric capture device index, read through OpenCV
	KindDevice Kind = iota
	// KindStream is an RTSP/HTTP video stream, file or V4L2 path, read through FFmpeg
	KindStream
	// KindSnapshot is an HTTP endpoint returning a single still image per request
	KindSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindStream:
		return "stream"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Classify decides how a source identifier is acquired
func Classify(id string) Kind {
	if _, err := strconv.Atoi(id); err == nil {
		return KindDevice
	}
	if isSnapshotEndpoint(id) {
		return KindSnapshot
	}
	return KindStream
}

// isNetworkSource checks if device is an HTTP/RTSP URL
func isNetworkSource(device string) bool {
	return strings.HasPrefix(device, "http://") ||
		strings.HasPrefix(device, "https://") ||
		strings.HasPrefix(device, "rtsp://")
}

func isSnapshotEndpoint(device string) bool {
	if !strings.HasPrefix(device, "http://") && !strings.HasPrefix(device, "https://") {
		return false
	}
	path := device
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	return strings.HasSuffix(path, ".jpg") ||
		strings.HasSuffix(path, ".jpeg") ||
		strings.HasSuffix(path, ".png") ||
		strings.HasSuffix(path, ".bmp") ||
		strings.Contains(path, "snapshot")
}

// deviceAccessible checks that a local device or file can be opened for reading
func deviceAccessible(device string) error {
	if isNetworkSource(device) {
		return nil
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("device %s not accessible: %w", device, err)
	}
	return file.Close()
}

// ffmpegArgs builds the ffmpeg command line that writes MJPEG frames to stdout
func ffmpegArgs(device string, fps, width, height int) []string {
	var args []string

	switch {
	case strings.HasPrefix(device, "rtsp://"):
		args = []string{"-rtsp_transport", "tcp", "-i", device}
	case isNetworkSource(device):
		args = []string{"-i", device}
	case strings.HasPrefix(device, "/dev/video"):
		// V4L2 device (USB camera)
		args = []string{"-f", "v4l2"}
		if width > 0 && height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", width, height))
		}
		if fps > 0 {
			args = append(args, "-framerate", strconv.Itoa(fps))
		}
		args = append(args, "-i", device)
	default:
		// Recorded file, paced at its native rate
		args = []string{"-re", "-i", device}
	}

	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg")
	if fps > 0 {
		args = append(args, "-r", strconv.Itoa(fps))
	}
	return append(args, "-q:v", "5", "-")
}
