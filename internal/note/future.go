package note

import (
	"context"

	"github.com/mediscribe/scribe/internal/visit"
)

// Future is a note being synthesized in the background.
type Future struct {
	done chan struct{}
	note visit.SOAPNote
	err  error
}

// Go starts s.Synthesize on its own goroutine. Cancelling ctx abandons the delay.
func Go(ctx context.Context, s Synthesizer, in Input) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.note, f.err = s.Synthesize(ctx, in)
	}()
	return f
}

// Resolved returns a future that is already complete.
func Resolved(n visit.SOAPNote) *Future {
	f := &Future{done: make(chan struct{}), note: n}
	close(f.done)
	return f
}

// Done is closed once the note is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the note is available without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the note is ready or ctx ends.
func (f *Future) Await(ctx context.Context) (visit.SOAPNote, error) {
	select {
	case <-ctx.Done():
		return visit.SOAPNote{}, ctx.Err()
	case <-f.done:
		return f.note.Clone(), f.err
	}
}
