package note

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscribe/scribe/internal/visit"
)

// gatedSynthesizer blocks until release is closed.
type gatedSynthesizer struct {
	release chan struct{}
}

func (g *gatedSynthesizer) Synthesize(ctx context.Context, in Input) (visit.SOAPNote, error) {
	select {
	case <-ctx.Done():
		return visit.SOAPNote{}, ctx.Err()
	case <-g.release:
	}
	return FromTranscript(in), nil
}

func TestFuture_NotReadyUntilSynthesized(t *testing.T) {
	g := &gatedSynthesizer{release: make(chan struct{})}
	f := Go(context.Background(), g, Input{Transcript: "Plan: rest."})

	assert.False(t, f.Ready())

	close(g.release)
	n, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, f.Ready())
	assert.Equal(t, "rest.", n.Plan)
}

func TestFuture_AwaitRespectsContext(t *testing.T) {
	g := &gatedSynthesizer{release: make(chan struct{})}
	defer close(g.release)
	f := Go(context.Background(), g, Input{Transcript: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_AwaitReturnsCopy(t *testing.T) {
	f := Resolved(Placeholder("x"))

	a, err := f.Await(context.Background())
	require.NoError(t, err)
	a.Assessment[0].Diagnosis = "changed"

	b, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Awaiting physician review", b.Assessment[0].Diagnosis)
}

func TestFuture_Done(t *testing.T) {
	f := Go(context.Background(), NewHeuristicSynthesizer(0), Input{})

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("future did not complete")
	}
}
