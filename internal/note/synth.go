package note

import (
	"context"
	"time"

	"github.com/mediscribe/scribe/internal/visit"
)

// DefaultDelay models the round-trip of a hosted note generator.
const DefaultDelay = time.Second

// Confidence scores assigned by the heuristic synthesizer.
const (
	placeholderConfidence = 50
	baselineConfidence    = 75
	matchedConfidence     = 85
)

const (
	placeholderCode = "Z00.00"
	unresolvedCode  = "TBD"
)

const (
	defaultChiefComplaint = "Medical evaluation"
	defaultObjective      = "Physical examination and vital signs to be documented by physician."
	defaultAssessment     = "Preliminary assessment based on patient history"
	defaultPlan           = "Plan to be determined after physician evaluation."

	placeholderSubjective = "Patient presented with symptoms as described in the chief complaint. Details of the history of present illness were discussed."
	placeholderObjective  = "Vital signs and physical examination findings were within normal limits unless otherwise noted."
	placeholderAssessment = "Awaiting physician review"
	placeholderPlan       = "Plan to be determined after physician review."
)

// Input is what a synthesizer needs from a visit.
type Input struct {
	Transcript     string
	ChiefComplaint string
}

// Synthesizer turns a transcript into a SOAP note.
type Synthesizer interface {
	Synthesize(ctx context.Context, in Input) (visit.SOAPNote, error)
}

// HeuristicSynthesizer builds notes from section headers spoken in the transcript.
// It waits Delay before answering a non-empty transcript.
type HeuristicSynthesizer struct {
	Delay time.Duration
}

// NewHeuristicSynthesizer returns a synthesizer with the given simulated latency.
func NewHeuristicSynthesizer(delay time.Duration) *HeuristicSynthesizer {
	return &HeuristicSynthesizer{Delay: delay}
}

// Synthesize returns the note for in. The only error is ctx ending during the delay.
func (h *HeuristicSynthesizer) Synthesize(ctx context.Context, in Input) (visit.SOAPNote, error) {
	if in.Transcript == "" {
		return Placeholder(in.ChiefComplaint), nil
	}

	if h.Delay > 0 {
		timer := time.NewTimer(h.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return visit.SOAPNote{}, ctx.Err()
		case <-timer.C:
		}
	}

	return FromTranscript(in), nil
}

// FromTranscript applies the section heuristics without any delay.
func FromTranscript(in Input) visit.SOAPNote {
	cc := in.ChiefComplaint
	if cc == "" {
		cc = defaultChiefComplaint
	}

	n := visit.SOAPNote{
		ChiefComplaint: cc,
		Subjective:     in.Transcript,
		Objective:      defaultObjective,
		Assessment: []visit.Diagnosis{
			{Diagnosis: defaultAssessment, ICD10: placeholderCode, Confidence: baselineConfidence},
		},
		Plan:              defaultPlan,
		OverallConfidence: baselineConfidence,
	}

	found := DetectSections(in.Transcript)
	if s, ok := found[Subjective]; ok {
		n.Subjective = s
	}
	if s, ok := found[Objective]; ok {
		n.Objective = s
	}
	if s, ok := found[Assessment]; ok {
		n.Assessment = []visit.Diagnosis{
			{Diagnosis: s, ICD10: unresolvedCode, Confidence: matchedConfidence},
		}
	}
	if s, ok := found[Plan]; ok {
		n.Plan = s
	}

	// overall confidence is not derived from section matches
	return n
}

// Placeholder is the note shown for a visit without a transcript.
func Placeholder(chiefComplaint string) visit.SOAPNote {
	return visit.SOAPNote{
		ChiefComplaint: chiefComplaint,
		Subjective:     placeholderSubjective,
		Objective:      placeholderObjective,
		Assessment: []visit.Diagnosis{
			{Diagnosis: placeholderAssessment, ICD10: placeholderCode, Confidence: placeholderConfidence},
		},
		Plan:              placeholderPlan,
		OverallConfidence: placeholderConfidence,
	}
}
