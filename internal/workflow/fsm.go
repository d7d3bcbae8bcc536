package workflow

import (
	"fmt"
	"time"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/visit"
)

// View is the screen currently shown.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewRecording View = "recording"
	ViewReview    View = "review"
)

// Defaults applied to a new visit when patient details are omitted.
const (
	DefaultPatientName    = "Anonymous Patient"
	DefaultChiefComplaint = "New Assessment"
	DefaultVisitType      = "Initial"
)

// State is the orchestrator's position: the view and the visit in flight, if any.
type State struct {
	View   View         `json:"view"`
	Active *visit.Visit `json:"activeVisit"`
}

// Clone returns a copy that shares nothing with s.
func (s State) Clone() State {
	out := State{View: s.View}
	if s.Active != nil {
		v := s.Active.Clone()
		out.Active = &v
	}
	return out
}

// Initial is the state at process start.
func Initial() State {
	return State{View: ViewDashboard}
}

// Event is an input to Transition.
type Event interface {
	Name() string
}

// PatientInfo is the optional intake form for a new visit.
type PatientInfo struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Complaint string `json:"complaint"`
	Type      string `json:"type"`
}

// StartNewVisit creates a visit with id at time now.
type StartNewVisit struct {
	Info PatientInfo
	ID   string
	Now  time.Time
}

// EndRecording attaches the finished recording to the active visit.
type EndRecording struct {
	Transcript string
	Duration   int
	Terms      []string
}

// Approve finalizes the active visit with the reviewed note.
// An empty ID means the active visit's id.
type Approve struct {
	ID   string
	Note visit.SOAPNote
}

// Cancel abandons the active visit.
type Cancel struct{}

// Back returns to the dashboard, abandoning the active visit.
type Back struct{}

// ReviewVisit opens an existing visit for review.
type ReviewVisit struct {
	Visit visit.Visit
}

func (StartNewVisit) Name() string { return "startNewVisit" }
func (EndRecording) Name() string  { return "endRecording" }
func (Approve) Name() string       { return "approve" }
func (Cancel) Name() string        { return "cancel" }
func (Back) Name() string          { return "back" }
func (ReviewVisit) Name() string   { return "reviewVisit" }

// Effect lists the side effects a transition asks the caller to perform.
type Effect struct {
	// Persist is upserted into the visit store before the new state is adopted.
	Persist *visit.Visit
	// Synthesize starts a draft note for the review view.
	Synthesize *note.Input
	// DiscardDraft drops any in-flight draft note.
	DiscardDraft bool
}

// Transition computes the next state for e. It performs no I/O. Events the current
// view does not accept return INVALID_TRANSITION and leave s unchanged.
func Transition(s State, e Event) (State, Effect, error) {
	invalid := func() (State, Effect, error) {
		return s, Effect{}, errors.NewInvalidTransition(string(s.View), e.Name())
	}

	switch ev := e.(type) {
	case StartNewVisit:
		if s.View != ViewDashboard {
			return invalid()
		}
		if ev.ID == "" {
			return s, Effect{}, errors.NewInvalidRequest("visit id is required")
		}
		v := newVisit(ev)
		return State{View: ViewRecording, Active: &v}, Effect{}, nil

	case EndRecording:
		if s.View != ViewRecording || s.Active == nil {
			return invalid()
		}
		v := s.Active.Clone()
		v.Transcript = ev.Transcript
		v.Duration = ev.Duration
		v.Status = visit.StatusPending
		v.Terms = append([]string{}, ev.Terms...)
		return State{View: ViewReview, Active: &v}, Effect{
			Synthesize: &note.Input{Transcript: v.Transcript, ChiefComplaint: v.ChiefComplaint},
		}, nil

	case Approve:
		if s.View != ViewReview || s.Active == nil {
			return invalid()
		}
		id := ev.ID
		if id == "" {
			id = s.Active.ID
		}
		if id != s.Active.ID {
			return s, Effect{}, errors.NewInvalidRequest("approved visit id does not match the visit under review")
		}
		if err := checkConfidences(ev.Note); err != nil {
			return s, Effect{}, err
		}
		v := s.Active.Clone()
		n := ev.Note.Clone()
		v.Status = visit.StatusApproved
		v.SOAPNote = &n
		v.Confidence = n.OverallConfidence
		return Initial(), Effect{Persist: &v, DiscardDraft: true}, nil

	case Cancel:
		if s.View != ViewRecording && s.View != ViewReview {
			return invalid()
		}
		return Initial(), Effect{DiscardDraft: true}, nil

	case Back:
		return Initial(), Effect{DiscardDraft: s.View == ViewReview}, nil

	case ReviewVisit:
		if s.View != ViewDashboard {
			return invalid()
		}
		v := ev.Visit.Clone()
		return State{View: ViewReview, Active: &v}, Effect{
			Synthesize: &note.Input{Transcript: v.Transcript, ChiefComplaint: v.ChiefComplaint},
		}, nil
	}

	return invalid()
}

func newVisit(ev StartNewVisit) visit.Visit {
	v := visit.Visit{
		ID:             ev.ID,
		PatientName:    ev.Info.Name,
		PatientAge:     ev.Info.Age,
		ChiefComplaint: ev.Info.Complaint,
		VisitType:      ev.Info.Type,
		Timestamp:      ev.Now,
		Status:         visit.StatusInProgress,
	}
	if v.PatientName == "" {
		v.PatientName = DefaultPatientName
	}
	if v.ChiefComplaint == "" {
		v.ChiefComplaint = DefaultChiefComplaint
	}
	if v.VisitType == "" {
		v.VisitType = DefaultVisitType
	}
	if v.PatientAge < 0 {
		v.PatientAge = 0
	}
	return v
}

func checkConfidences(n visit.SOAPNote) error {
	if n.OverallConfidence < 0 || n.OverallConfidence > 100 {
		return errors.NewInvalidRequest(fmt.Sprintf("overall confidence %d is outside 0..100", n.OverallConfidence))
	}
	for i, d := range n.Assessment {
		if d.Confidence < 0 || d.Confidence > 100 {
			return errors.NewInvalidRequest(fmt.Sprintf("assessment %d confidence %d is outside 0..100", i, d.Confidence))
		}
	}
	return nil
}
