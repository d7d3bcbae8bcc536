package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/recording"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/visit"
)

// Recorder is the recording session the orchestrator drives while in the recording view.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (<-chan recording.Handoff, error)
	Cancel() error
	State() recording.State
}

// Orchestrator owns the current view and active visit, applying Transition and
// carrying out its effects against the store, synthesizer and recorder.
type Orchestrator struct {
	store    *store.Store
	synth    note.Synthesizer
	recorder Recorder
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger

	mu          sync.Mutex
	state       State
	draft       *note.Future
	cancelDraft context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder attaches the recording controller.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock replaces time.Now for visit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the visit id generator.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// NewOrchestrator starts on the dashboard.
func NewOrchestrator(st *store.Store, synth note.Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store: st,
		synth: synth,
		now:   time.Now,
		newID: store.NewVisitID,
		log:   zerolog.Nop(),
		state: Initial(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Store returns the visit store.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// apply runs a transition and its effects. Callers hold o.mu.
func (o *Orchestrator) apply(ctx context.Context, e Event) error {
	next, eff, err := Transition(o.state, e)
	if err != nil {
		return err
	}

	if eff.Persist != nil {
		if err := o.store.Upsert(ctx, *eff.Persist); err != nil {
			return err
		}
	}
	if eff.DiscardDraft || eff.Synthesize != nil {
		o.dropDraft()
	}
	if eff.Synthesize != nil {
		dctx, cancel := context.WithCancel(context.Background())
		o.draft = note.Go(dctx, o.synth, *eff.Synthesize)
		o.cancelDraft = cancel
	}

	prev := o.state.View
	o.state = next
	ev := o.log.Info().Str("event", e.Name()).Str("from", string(prev)).Str("to", string(next.View))
	if next.Active != nil {
		ev = ev.Str("visit_id", next.Active.ID)
	}
	ev.Msg("workflow transition")
	return nil
}

func (o *Orchestrator) dropDraft() {
	if o.cancelDraft != nil {
		o.cancelDraft()
	}
	o.draft = nil
	o.cancelDraft = nil
}

// StartNewVisit creates an in-progress visit and moves to the recording view.
func (o *Orchestrator) StartNewVisit(_ context.Context, info PatientInfo) (visit.Visit, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.apply(context.Background(), StartNewVisit{Info: info, ID: o.newID(), Now: o.now()}); err != nil {
		return visit.Visit{}, err
	}
	return o.state.Active.Clone(), nil
}

// EndRecording attaches the recording result and moves to review, starting the draft note.
func (o *Orchestrator) EndRecording(ctx context.Context, transcript string, duration int, terms []string) (visit.Visit, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.apply(ctx, EndRecording{Transcript: transcript, Duration: duration, Terms: terms}); err != nil {
		return visit.Visit{}, err
	}
	return o.state.Active.Clone(), nil
}

// Approve finalizes the active visit with n, stores it and returns to the dashboard.
func (o *Orchestrator) Approve(ctx context.Context, id string, n visit.SOAPNote) (visit.Visit, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var approvedID string
	if o.state.Active != nil {
		approvedID = o.state.Active.ID
	}
	if err := o.apply(ctx, Approve{ID: id, Note: n}); err != nil {
		return visit.Visit{}, err
	}
	return o.store.Get(approvedID)
}

// Cancel abandons the active visit. In the recording view the recorder is cancelled
// first; a recording that is already being transcribed cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.View == ViewRecording && o.recorder != nil {
		if err := o.recorder.Cancel(); err != nil {
			return err
		}
	}
	return o.apply(ctx, Cancel{})
}

// Back returns to the dashboard from any view.
func (o *Orchestrator) Back(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.View == ViewRecording && o.recorder != nil {
		if err := o.recorder.Cancel(); err != nil {
			return err
		}
	}
	return o.apply(ctx, Back{})
}

// ReviewVisit opens the stored visit id for review and re-synthesizes its note
// from the stored transcript.
func (o *Orchestrator) ReviewVisit(ctx context.Context, id string) (visit.Visit, error) {
	v, err := o.store.Get(id)
	if err != nil {
		return visit.Visit{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.apply(ctx, ReviewVisit{Visit: v}); err != nil {
		return visit.Visit{}, err
	}
	return o.state.Active.Clone(), nil
}

// Draft returns the note being prepared for the visit under review.
func (o *Orchestrator) Draft() (*note.Future, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.View != ViewReview || o.draft == nil {
		return nil, errors.NewInvalidTransition(string(o.state.View), "draft")
	}
	return o.draft, nil
}

// StartRecording begins capture for the active visit.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requireRecorder(); err != nil {
		return err
	}
	if o.state.View != ViewRecording {
		return errors.NewInvalidTransition(string(o.state.View), "startRecording")
	}
	return o.recorder.Start(ctx)
}

// FinishRecording stops capture, waits for the transcription handoff and applies
// EndRecording. A failed transcription still reaches review with an empty transcript.
func (o *Orchestrator) FinishRecording(ctx context.Context) (visit.Visit, error) {
	o.mu.Lock()
	if err := o.requireRecorder(); err != nil {
		o.mu.Unlock()
		return visit.Visit{}, err
	}
	if o.state.View != ViewRecording {
		view := o.state.View
		o.mu.Unlock()
		return visit.Visit{}, errors.NewInvalidTransition(string(view), "endRecording")
	}
	ch, err := o.recorder.Stop(ctx)
	o.mu.Unlock()
	if err != nil {
		return visit.Visit{}, err
	}

	// transcription may take a while; state reads stay available meanwhile
	var h recording.Handoff
	select {
	case h = <-ch:
	case <-ctx.Done():
		// the handoff still lands; apply it once it arrives
		go func() {
			h := <-ch
			if _, err := o.EndRecording(context.Background(), h.Transcript, h.Elapsed, h.Terms); err != nil {
				o.log.Warn().Err(err).Msg("late recording handoff dropped")
			}
		}()
		return visit.Visit{}, ctx.Err()
	}

	return o.EndRecording(ctx, h.Transcript, h.Elapsed, h.Terms)
}

func (o *Orchestrator) requireRecorder() error {
	if o.recorder == nil {
		return errors.NewInternal(fmt.Errorf("no recorder configured"))
	}
	return nil
}
