package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/recording"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/visit"
)

type stubTranscriber struct {
	mu         sync.Mutex
	transcript string
	err        error
	gate       chan struct{}
}

func (s *stubTranscriber) Transcribe(ctx context.Context, _ []byte, _ string) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript, s.err
}

type harness struct {
	orch    *Orchestrator
	store   *store.Store
	capture *recording.PushCapture
	ctl     *recording.Controller
	tr      *stubTranscriber
}

func newHarness(t *testing.T, seed []visit.Visit) *harness {
	t.Helper()
	st, err := store.Open(context.Background(), store.NewMemoryPersister("sonar_visits"), seed)
	require.NoError(t, err)

	capture := recording.NewPushCapture()
	tr := &stubTranscriber{}
	ctl := recording.NewController(capture, tr)

	n := 0
	orch := NewOrchestrator(st, note.NewHeuristicSynthesizer(0),
		WithRecorder(ctl),
		WithClock(func() time.Time { return t0 }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("visit_t%d", n)
		}),
	)
	return &harness{orch: orch, store: st, capture: capture, ctl: ctl, tr: tr}
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	v, err := h.orch.StartNewVisit(ctx, PatientInfo{Name: "A", Complaint: "B", Type: "C"})
	require.NoError(t, err)
	assert.Equal(t, ViewRecording, h.orch.State().View)
	assert.Equal(t, visit.StatusInProgress, h.orch.State().Active.Status)

	v, err = h.orch.EndRecording(ctx, "Plan: rest.", 42, []string{})
	require.NoError(t, err)
	assert.Equal(t, ViewReview, h.orch.State().View)
	assert.Equal(t, visit.StatusPending, v.Status)
	assert.Equal(t, 42, v.Duration)

	draft, err := h.orch.Draft()
	require.NoError(t, err)
	n, err := draft.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rest.", n.Plan)

	approved, err := h.orch.Approve(ctx, v.ID, n)
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, h.orch.State().View)
	assert.Nil(t, h.orch.State().Active)
	assert.Equal(t, visit.StatusApproved, approved.Status)
	assert.Equal(t, 75, approved.Confidence)

	list := h.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, v.ID, list[0].ID)
	assert.Equal(t, visit.StatusApproved, list[0].Status)
	require.NotNil(t, list[0].SOAPNote)
}

func TestOrchestrator_ApproveTwiceReplaces(t *testing.T) {
	h := newHarness(t, visit.Seed(t0))
	ctx := context.Background()

	_, err := h.orch.StartNewVisit(ctx, PatientInfo{})
	require.NoError(t, err)
	v, err := h.orch.EndRecording(ctx, "", 5, nil)
	require.NoError(t, err)
	_, err = h.orch.Approve(ctx, v.ID, note.Placeholder(v.ChiefComplaint))
	require.NoError(t, err)
	require.Equal(t, 5, h.store.Len())

	_, err = h.orch.ReviewVisit(ctx, v.ID)
	require.NoError(t, err)
	edited := note.Placeholder("changed")
	_, err = h.orch.Approve(ctx, v.ID, edited)
	require.NoError(t, err)

	assert.Equal(t, 5, h.store.Len())
	got, err := h.store.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.SOAPNote.ChiefComplaint)
	assert.Equal(t, v.ID, h.store.List()[0].ID)
}

func TestOrchestrator_ReviewResynthesizesFromTranscript(t *testing.T) {
	seed := []visit.Visit{{
		ID:             "visit_x",
		ChiefComplaint: "Cough",
		Transcript:     "Plan: fluids.",
		Status:         visit.StatusApproved,
		SOAPNote:       &visit.SOAPNote{Plan: "previously edited"},
	}}
	h := newHarness(t, seed)
	ctx := context.Background()

	_, err := h.orch.ReviewVisit(ctx, "visit_x")
	require.NoError(t, err)

	draft, err := h.orch.Draft()
	require.NoError(t, err)
	n, err := draft.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fluids.", n.Plan)
	assert.Equal(t, "Cough", n.ChiefComplaint)
}

func TestOrchestrator_ReviewUnknownVisit(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.ReviewVisit(context.Background(), "visit_missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, ViewDashboard, h.orch.State().View)
}

func TestOrchestrator_CancelDuringRecording(t *testing.T) {
	h := newHarness(t, visit.Seed(t0))
	ctx := context.Background()

	_, err := h.orch.StartNewVisit(ctx, PatientInfo{})
	require.NoError(t, err)
	require.NoError(t, h.orch.StartRecording(ctx))
	require.NoError(t, h.capture.Push(ctx, []byte("audio")))

	require.NoError(t, h.orch.Cancel(ctx))

	st := h.orch.State()
	assert.Equal(t, ViewDashboard, st.View)
	assert.Nil(t, st.Active)
	assert.Equal(t, recording.StateIdle, h.ctl.State())
	assert.False(t, h.capture.Active())
	assert.Equal(t, 4, h.store.Len())
}

func TestOrchestrator_CancelDuringProcessingRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.tr.gate = make(chan struct{})
	ctx := context.Background()

	_, err := h.orch.StartNewVisit(ctx, PatientInfo{})
	require.NoError(t, err)
	require.NoError(t, h.orch.StartRecording(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.FinishRecording(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.ctl.State() == recording.StateProcessing
	}, time.Second, 5*time.Millisecond)

	err = h.orch.Cancel(ctx)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	assert.Equal(t, ViewRecording, h.orch.State().View)

	close(h.tr.gate)
	require.NoError(t, <-done)
	assert.Equal(t, ViewReview, h.orch.State().View)
}

func TestOrchestrator_FinishRecording(t *testing.T) {
	h := newHarness(t, nil)
	h.tr.transcript = "Symptoms: headache. Plan: rest."
	ctx := context.Background()

	_, err := h.orch.StartNewVisit(ctx, PatientInfo{Complaint: "Headache"})
	require.NoError(t, err)
	require.NoError(t, h.orch.StartRecording(ctx))
	require.NoError(t, h.capture.Push(ctx, []byte("audio")))

	v, err := h.orch.FinishRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusPending, v.Status)
	assert.Equal(t, "Symptoms: headache. Plan: rest.", v.Transcript)
	assert.Equal(t, []string{"headache"}, v.Terms)
	assert.Equal(t, recording.StateHandedOff, h.ctl.State())
}

func TestOrchestrator_FinishRecordingTranscriptionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.tr.err = errors.NewTranscriptionUnreachable(fmt.Errorf("refused"))
	ctx := context.Background()

	_, err := h.orch.StartNewVisit(ctx, PatientInfo{Complaint: "Rash"})
	require.NoError(t, err)
	require.NoError(t, h.orch.StartRecording(ctx))

	v, err := h.orch.FinishRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, ViewReview, h.orch.State().View)
	assert.Equal(t, "", v.Transcript)

	draft, err := h.orch.Draft()
	require.NoError(t, err)
	n, err := draft.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n.OverallConfidence)
	assert.Equal(t, "Rash", n.ChiefComplaint)
}

func TestOrchestrator_StartRecordingOutsideRecordingView(t *testing.T) {
	h := newHarness(t, nil)

	err := h.orch.StartRecording(context.Background())
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestOrchestrator_DraftOnlyInReview(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Draft()
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestOrchestrator_ApproveSaveFailureKeepsReview(t *testing.T) {
	p := store.NewMemoryPersister("sonar_visits")
	st, err := store.Open(context.Background(), p, nil)
	require.NoError(t, err)
	orch := NewOrchestrator(st, note.NewHeuristicSynthesizer(0))
	ctx := context.Background()

	_, err = orch.StartNewVisit(ctx, PatientInfo{})
	require.NoError(t, err)
	v, err := orch.EndRecording(ctx, "x", 1, nil)
	require.NoError(t, err)

	p.SaveErr = fmt.Errorf("disk full")
	_, err = orch.Approve(ctx, v.ID, note.Placeholder(""))
	require.Error(t, err)

	assert.Equal(t, ViewReview, orch.State().View)
	assert.Equal(t, v.ID, orch.State().Active.ID)
	assert.Equal(t, 0, st.Len())
}
