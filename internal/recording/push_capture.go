package recording

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrDeviceBusy is returned when a second stream is opened on an exclusive capture.
var ErrDeviceBusy = errors.New("capture device is already in use")

// ErrNotCapturing is returned by Push when no stream is open.
var ErrNotCapturing = errors.New("no capture stream is open")

// PushCapture is a capture device fed by a remote recorder, such as the browser's
// MediaRecorder posting chunks to the server.
type PushCapture struct {
	mu  sync.Mutex
	cur *pushStream
}

// NewPushCapture returns a closed capture.
func NewPushCapture() *PushCapture {
	return &PushCapture{}
}

// Open implements Capture.
func (p *PushCapture) Open(_ context.Context) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		return nil, ErrDeviceBusy
	}
	p.cur = &pushStream{
		owner:  p,
		reqs:   make(chan pushReq),
		closed: make(chan struct{}),
	}
	return p.cur, nil
}

// Push hands one recorded chunk to the open stream. It returns once the reader
// has consumed the chunk and asked for more.
func (p *PushCapture) Push(ctx context.Context, chunk []byte) error {
	p.mu.Lock()
	s := p.cur
	p.mu.Unlock()
	if s == nil {
		return ErrNotCapturing
	}

	req := pushReq{data: bytes.Clone(chunk), done: make(chan struct{})}
	select {
	case s.reqs <- req:
	case <-s.closed:
		return ErrNotCapturing
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
	case <-s.closed:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Active reports whether a stream is currently open.
func (p *PushCapture) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur != nil
}

func (p *PushCapture) release(s *pushStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == s {
		p.cur = nil
	}
}

type pushReq struct {
	data []byte
	done chan struct{}
}

// pushStream delivers pushed chunks to a single reader.
type pushStream struct {
	owner  *PushCapture
	reqs   chan pushReq
	closed chan struct{}
	once   sync.Once

	// owned by the reader
	pending *pushReq
	buf     []byte
}

func (s *pushStream) Read(b []byte) (int, error) {
	for {
		if len(s.buf) > 0 {
			n := copy(b, s.buf)
			s.buf = s.buf[n:]
			return n, nil
		}
		// the previous chunk is fully consumed; let its Push return
		if s.pending != nil {
			close(s.pending.done)
			s.pending = nil
		}

		select {
		case req := <-s.reqs:
			s.pending = &req
			s.buf = req.data
		case <-s.closed:
			return 0, io.EOF
		}
	}
}

// Close ends the stream and frees the capture for the next Open.
func (s *pushStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.owner.release(s)
	})
	return nil
}
