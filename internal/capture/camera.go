package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// FrameFunc is called for each captured JPEG frame. Returning an error stops
// the capture session; return ErrStopCapture for a deliberate stop.
type FrameFunc func(frameData []byte) error

// ErrStopCapture is returned by a FrameFunc to end the session cleanly
// (pause or shutdown), as opposed to a capture failure.
var ErrStopCapture = errors.New("capture stopped")

// Camera captures JPEG frames from a local V4L2 device or a network stream
// using an FFmpeg subprocess.
type Camera struct {
	Device string // "/dev/video0", rtsp://..., http://...
	FPS    int
	Width  int

	mu     sync.Mutex
	cancel context.CancelFunc
	cmd    *exec.Cmd
}

// Run starts FFmpeg and invokes fn for every frame. It blocks until the
// context is cancelled, fn asks to stop, or the camera fails.
func (c *Camera) Run(ctx context.Context, fn FrameFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
	}

	switch {
	case strings.HasPrefix(c.Device, "rtsp://"), strings.HasPrefix(c.Device, "rtsps://"):
		args = append(args,
			"-rtsp_transport", "tcp",
			"-stimeout", "5000000", // 5s socket timeout (microseconds)
			"-timeout", "5000000",
		)
	case strings.HasPrefix(c.Device, "http://"), strings.HasPrefix(c.Device, "https://"):
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-timeout", "10000000",
		)
	default:
		// Local capture device
		args = append(args, "-f", "v4l2")
	}

	args = append(args,
		"-i", c.Device,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", c.FPS, c.Width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	if err := scanJPEGFrames(ctx, stdout, fn); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if errors.Is(err, ErrStopCapture) || ctx.Err() != nil {
			return ErrStopCapture
		}
		return fmt.Errorf("read frames: %w", err)
	}

	return cmd.Wait()
}

// Stop terminates the FFmpeg process, interrupting an in-progress frame
// wait.
func (c *Camera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// scanJPEGFrames reads a stream of concatenated JPEG images and hands each
// complete frame to fn. Tolerates initial EOF while ffmpeg is still opening
// the device (up to 5 seconds).
func scanJPEGFrames(ctx context.Context, r io.Reader, fn FrameFunc) error {
	reader := bufio.NewReaderSize(r, 512*1024)
	framesRead := 0
	const maxStartupRetries = 50 // 50 * 100ms = 5s max wait for first frame
	startupRetries := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Find JPEG start marker: FF D8
		if err := findJPEGStart(reader); err != nil {
			if err == io.EOF {
				if framesRead == 0 && startupRetries < maxStartupRetries {
					startupRetries++
					time.Sleep(100 * time.Millisecond)
					continue
				}
				if framesRead > 0 {
					return nil // stream ended after producing frames
				}
				return fmt.Errorf("no frames received from camera (waited %.1fs)", float64(startupRetries)*0.1)
			}
			return err
		}

		// Read until JPEG end marker: FF D9
		frameData, err := readUntilJPEGEnd(reader)
		if err != nil {
			if err == io.EOF && framesRead > 0 {
				return nil // stream ended mid-frame
			}
			return err
		}

		if len(frameData) > 0 {
			framesRead++
			if err := fn(frameData); err != nil {
				return err
			}
		}
	}
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		// Safety: max 10MB per frame
		if len(data) > 10*1024*1024 {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
