package recording

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFFMPEGCaptureOpenReadAndClose(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nexec sleep 5\n")
	capture := NewFFMPEGCapture(FFMPEGConfig{Command: script})

	stream, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if _, err := capture.Open(context.Background()); err != ErrDeviceBusy {
		t.Fatalf("second open: got %v, want ErrDeviceBusy", err)
	}

	buf := make([]byte, 8)
	n, readErr := stream.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := io.ReadAll(stream); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	// released for the next session
	again, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	_ = again.Close()
	_, _ = io.ReadAll(again)
}

func TestFFMPEGCaptureTailIsReadableAfterClose(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "tail.sh", "#!/usr/bin/env bash\ntrap 'printf tail; exit 0' INT\nprintf head\nwhile true; do sleep 0.05; done\n")
	capture := NewFFMPEGCapture(FFMPEGConfig{Command: script})

	stream, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "headtail" {
		t.Fatalf("data = %q, want %q", string(data), "headtail")
	}
}

func TestFFMPEGCaptureOpenEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(FFMPEGConfig{Command: script})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Open(ctx)
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "no such device") {
		t.Fatalf("stderr not included: %v", err)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func TestNewFFMPEGCaptureDefaults(t *testing.T) {
	t.Parallel()

	c := NewFFMPEGCapture(FFMPEGConfig{})
	if c.cfg.Command != "ffmpeg" || c.cfg.InputFormat != "pulse" || c.cfg.InputDevice != "default" {
		t.Fatalf("unexpected defaults: %+v", c.cfg)
	}
}

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
