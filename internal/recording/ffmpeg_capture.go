package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// FFMPEGConfig selects the ffmpeg input device.
type FFMPEGConfig struct {
	Command     string // default "ffmpeg"
	InputFormat string // default "pulse"
	InputDevice string // default "default"
}

// FFMPEGFilename matches the container FFMPEGCapture produces.
const FFMPEGFilename = "recording.ogg"

// FFMPEGCapture records the local microphone with ffmpeg, encoding Opus in an Ogg container.
type FFMPEGCapture struct {
	cfg FFMPEGConfig

	mu     sync.Mutex
	active bool
}

// NewFFMPEGCapture fills in defaults for empty config fields.
func NewFFMPEGCapture(cfg FFMPEGConfig) *FFMPEGCapture {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &FFMPEGCapture{cfg: cfg}
}

// Open implements Capture. The process is given a short grace period so that a
// missing device or permission failure is reported here rather than on first read.
func (c *FFMPEGCapture) Open(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil, ErrDeviceBusy
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.cfg.InputFormat,
		"-i", c.cfg.InputDevice,
		"-ac", "1",
		"-c:a", "libopus",
		"-f", "ogg",
		"-",
	}

	// the process outlives the request that started it; Close stops it
	cmd := exec.CommandContext(context.WithoutCancel(ctx), c.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// an explicit pipe keeps the read end open after the process exits,
	// so the tail of the recording can still be drained
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	pw.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		pr.Close()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	c.active = true
	return &ffmpegStream{
		stdout:  pr,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		release: c.release,
	}, nil
}

func (c *FFMPEGCapture) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

type ffmpegStream struct {
	stdout *os.File
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error
	release func()

	stopOnce  sync.Once
	closeOnce sync.Once
	stopErr   error
}

// Read returns captured bytes until ffmpeg exits and the pipe drains.
func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil {
		s.closeOnce.Do(func() { _ = s.stdout.Close() })
		if errors.Is(err, os.ErrClosed) {
			err = io.EOF
		}
	}
	return n, err
}

// Close interrupts ffmpeg so it can finalize the container, killing it if it lingers.
// Data already written stays readable until EOF.
func (s *ffmpegStream) Close() error {
	s.stopOnce.Do(func() {
		defer s.release()

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
	})

	return s.stopErr
}

// normalizeStopErr ignores the non-zero exit ffmpeg reports after an interrupt.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}
