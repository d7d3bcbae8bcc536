package recording

import (
	"context"
	"io"
	"time"
)

// Stream is an open capture handle. Closing it releases the device.
type Stream interface {
	io.Reader
	Close() error
}

// Capture opens the microphone. Only one stream may be open at a time.
type Capture interface {
	Open(ctx context.Context) (Stream, error)
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Clock supplies the current time for elapsed-time accounting.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
