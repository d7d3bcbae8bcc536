package recording

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	scerrors "github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
)

// State is the controller's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateProcessing State = "processing"
	StateHandedOff  State = "handed_off"
)

// DefaultFilename is the upload name used for browser recordings.
const DefaultFilename = "recording.webm"

const readChunkSize = 32 * 1024

// Handoff is what a finished session delivers to the caller.
// A failed transcription yields an empty transcript and no terms; Err records why.
type Handoff struct {
	Transcript string   `json:"transcript"`
	Elapsed    int      `json:"elapsed"`
	Terms      []string `json:"terms"`
	Err        error    `json:"-"`
}

// Status is a point-in-time view of the session.
type Status struct {
	State          State        `json:"state"`
	Paused         bool         `json:"paused"`
	ElapsedSeconds int          `json:"elapsed_seconds"`
	Chunks         int          `json:"chunks"`
	Bytes          int          `json:"bytes"`
	Section        note.Section `json:"section,omitempty"`
	Transcript     string       `json:"transcript,omitempty"`
	Terms          []string     `json:"terms"`
}

// Controller coordinates one recording session at a time: capture, elapsed time,
// chunk buffering and the handoff to transcription.
type Controller struct {
	capture     Capture
	transcriber Transcriber
	clock       Clock
	log         zerolog.Logger
	filename    string

	mu       sync.Mutex
	state    State
	starting bool // capture.Open in flight
	gen      int // bumped per session; stale pumps drop their chunks
	stream   Stream
	pumpDone chan struct{}
	chunks   [][]byte
	size     int

	paused    bool
	elapsed   int // whole seconds from finished running intervals
	resumedAt time.Time

	section    note.Section
	transcript string
	terms      []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the controller's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

// WithFilename sets the filename sent with the audio payload.
func WithFilename(name string) Option {
	return func(ctl *Controller) { ctl.filename = name }
}

// NewController returns an idle controller.
func NewController(capture Capture, transcriber Transcriber, opts ...Option) *Controller {
	c := &Controller{
		capture:     capture,
		transcriber: transcriber,
		clock:       systemClock{},
		log:         zerolog.Nop(),
		filename:    DefaultFilename,
		state:       StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start acquires the capture device and begins recording. If the device cannot be
// opened the controller is left exactly as it was. The device is opened without
// holding the session lock, so Status stays responsive while it starts.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRecording, StatePaused, StateProcessing:
		c.mu.Unlock()
		return scerrors.NewSessionActive(string(c.state))
	}
	if c.starting {
		c.mu.Unlock()
		return scerrors.NewSessionActive("starting")
	}
	c.starting = true
	c.mu.Unlock()

	stream, err := c.capture.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		c.log.Warn().Err(err).Msg("capture device unavailable")
		return scerrors.NewDeviceUnavailable(err)
	}

	c.gen++
	c.stream = stream
	c.pumpDone = make(chan struct{})
	c.chunks = nil
	c.size = 0
	c.paused = false
	c.elapsed = 0
	c.resumedAt = c.clock.Now()
	c.section = note.Subjective
	c.transcript = ""
	c.terms = []string{}
	c.state = StateRecording

	go c.pump(c.gen, stream, c.pumpDone)

	c.log.Info().Int("session", c.gen).Msg("recording started")
	return nil
}

// pump copies captured audio into the chunk buffer until the stream ends.
func (c *Controller) pump(gen int, stream Stream, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			c.appendChunk(gen, buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debug().Err(err).Msg("capture stream ended")
			}
			return
		}
	}
}

func (c *Controller) appendChunk(gen int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.paused {
		return
	}
	if c.state != StateRecording && c.state != StateProcessing {
		return
	}
	c.chunks = append(c.chunks, bytes.Clone(data))
	c.size += len(data)
}

// Pause suspends elapsed-time counting and chunk buffering.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePaused:
		return nil
	case StateRecording:
	default:
		return scerrors.NewNoActiveSession()
	}
	c.elapsed += c.runningSeconds()
	c.paused = true
	c.state = StatePaused
	return nil
}

// Resume restarts elapsed-time counting and chunk buffering.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording:
		return nil
	case StatePaused:
	default:
		return scerrors.NewNoActiveSession()
	}
	c.resumedAt = c.clock.Now()
	c.paused = false
	c.state = StateRecording
	return nil
}

// Stop releases the capture device, freezes elapsed time and transcribes the
// buffered audio in the background. The returned channel receives exactly one
// Handoff. Transcription is not cancelled when ctx ends.
func (c *Controller) Stop(ctx context.Context) (<-chan Handoff, error) {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		if state == StateProcessing {
			return nil, scerrors.NewSessionActive(string(state))
		}
		return nil, scerrors.NewNoActiveSession()
	}

	if !c.paused {
		c.elapsed += c.runningSeconds()
	}
	c.state = StateProcessing
	stream, done := c.stream, c.pumpDone
	c.stream = nil
	elapsed := c.elapsed
	c.mu.Unlock()

	if err := stream.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing capture stream")
	}
	<-done

	c.mu.Lock()
	audio := bytes.Join(c.chunks, nil)
	c.chunks = nil
	c.size = 0
	c.paused = false
	c.mu.Unlock()

	out := make(chan Handoff, 1)
	go c.transcribe(context.WithoutCancel(ctx), audio, elapsed, out)

	c.log.Info().Int("elapsed", elapsed).Int("bytes", len(audio)).Msg("recording stopped")
	return out, nil
}

func (c *Controller) transcribe(ctx context.Context, audio []byte, elapsed int, out chan<- Handoff) {
	defer close(out)

	h := Handoff{Elapsed: elapsed, Terms: []string{}}
	transcript, err := c.transcriber.Transcribe(ctx, audio, c.filename)
	if err != nil {
		// the workflow continues to review with an empty transcript
		c.log.Warn().Err(err).Msg("transcription failed")
		h.Err = err
	} else {
		h.Transcript = transcript
		h.Terms = note.ExtractTerms(transcript)
	}

	c.mu.Lock()
	c.state = StateHandedOff
	c.transcript = h.Transcript
	c.terms = note.MergeTerms(c.terms, h.Terms)
	c.mu.Unlock()

	out <- h
}

// Cancel releases the capture device and discards buffered audio. Cancelling an
// idle session is a no-op; cancelling during processing is rejected.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	switch c.state {
	case StateProcessing:
		c.mu.Unlock()
		return scerrors.NewInvalidTransition(string(StateProcessing), "cancel")
	case StateRecording, StatePaused:
	default:
		c.state = StateIdle
		c.mu.Unlock()
		return nil
	}

	c.gen++
	stream := c.stream
	c.stream = nil
	c.chunks = nil
	c.size = 0
	c.paused = false
	c.elapsed = 0
	c.transcript = ""
	c.terms = []string{}
	c.state = StateIdle
	c.mu.Unlock()

	if err := stream.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing capture stream")
	}
	c.log.Info().Msg("recording cancelled")
	return nil
}

// MarkSection records which SOAP section the clinician is dictating.
func (c *Controller) MarkSection(s note.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording && c.state != StatePaused {
		return scerrors.NewNoActiveSession()
	}
	c.section = s
	return nil
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.elapsed
	if c.state == StateRecording {
		elapsed += c.runningSeconds()
	}

	st := Status{
		State:          c.state,
		Paused:         c.paused,
		ElapsedSeconds: elapsed,
		Chunks:         len(c.chunks),
		Bytes:          c.size,
		Transcript:     c.transcript,
		Terms:          append([]string{}, c.terms...),
	}
	if c.state == StateRecording || c.state == StatePaused {
		st.Section = c.section
	}
	return st
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// runningSeconds counts the whole seconds of the current running interval. A
// partial second is dropped at pause rather than carried into the next interval.
func (c *Controller) runningSeconds() int {
	d := c.clock.Now().Sub(c.resumedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
