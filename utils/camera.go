package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/config"
)

// FrameSource yields encoded JPEG frames until io.EOF.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

const maxFrameSize = 8 << 20

// CameraCapture streams MJPEG frames from a long-running ffmpeg process
// reading either the local camera or a file/URL source.
type CameraCapture struct {
	DeviceID  int
	Source    string
	Width     int
	Height    int
	Framerate int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	frames *FrameReader
}

func NewCameraCapture(cfg config.DetectorConfig) *CameraCapture {
	return &CameraCapture{
		DeviceID:  cfg.DeviceID,
		Source:    cfg.VideoSource,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Framerate: cfg.Framerate,
	}
}

// inputArgs picks the ffmpeg demuxer for the current operating system.
func (c *CameraCapture) inputArgs() ([]string, error) {
	if c.Source != "" {
		// -re paces file input at its native frame rate
		return []string{"-re", "-i", c.Source}, nil
	}

	size := fmt.Sprintf("%dx%d", c.Width, c.Height)
	rate := strconv.Itoa(c.Framerate)
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-video_size", size, "-framerate", rate, "-i", strconv.Itoa(c.DeviceID)}, nil
	case "linux":
		return []string{"-f", "v4l2", "-video_size", size, "-framerate", rate, "-i", fmt.Sprintf("/dev/video%d", c.DeviceID)}, nil
	case "windows":
		return []string{"-f", "dshow", "-video_size", size, "-framerate", rate, "-i", "video=USB Camera"}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// Args returns the full ffmpeg command line.
func (c *CameraCapture) Args() ([]string, error) {
	input, err := c.inputArgs()
	if err != nil {
		return nil, err
	}
	args := append([]string{"-hide_banner", "-loglevel", "error"}, input...)
	return append(args,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2", // High quality JPEG
		"-"), nil
}

// Open starts ffmpeg; the process is killed when ctx is cancelled.
func (c *CameraCapture) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("camera already open")
	}
	args, err := c.Args()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		zap.L().Error("Failed to start video capture", zap.Error(err), zap.Strings("args", args))
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	zap.L().Info("Video capture started",
		zap.Int("device_id", c.DeviceID),
		zap.String("source", c.Source),
		zap.Int("pid", cmd.Process.Pid))

	c.cmd = cmd
	c.stdout = stdout
	c.frames = NewFrameReader(stdout)
	return nil
}

func (c *CameraCapture) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	frames := c.frames
	c.mu.Unlock()
	if frames == nil {
		return nil, fmt.Errorf("camera not open")
	}
	return frames.Next()
}

func (c *CameraCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil {
		return nil
	}
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.stdout.Close()
	err := c.cmd.Wait()
	c.cmd, c.stdout, c.frames = nil, nil, nil

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("failed to stop ffmpeg: %w", err)
	}
	zap.L().Info("Video capture stopped")
	return nil
}

// FrameReader splits a concatenated JPEG stream on SOI/EOI markers.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 64<<10), maxSize: maxFrameSize}
}

// Next returns the next complete frame, io.EOF at a clean end of stream and
// io.ErrUnexpectedEOF when the stream stops mid-frame.
func (f *FrameReader) Next() ([]byte, error) {
	var prev byte
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if prev == 0xFF && b == 0xD8 {
			break
		}
		prev = b
	}

	frame := []byte{0xFF, 0xD8}
	prev = 0
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		frame = append(frame, b)
		if prev == 0xFF && b == 0xD9 {
			return frame, nil
		}
		if len(frame) > f.maxSize {
			return nil, ErrFrameTooLarge
		}
		prev = b
	}
}
