package visit

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a visit.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusInProgress, StatusPending, StatusApproved:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown visit status %q", s)
	}
}

// Visit is one clinical encounter.
// JSON names match the persisted session document.
type Visit struct {
	// ID is "visit_" followed by a ULID for visits created at runtime
	ID string `json:"id"`

	PatientName    string `json:"patientName"`
	PatientAge     int    `json:"patientAge"` // zero when unknown
	ChiefComplaint string `json:"chiefComplaint"`
	VisitType      string `json:"visitType"`

	// Timestamp is when the visit was created
	Timestamp time.Time `json:"timestamp"`

	Status Status `json:"status"`

	// Duration is the recorded length in seconds
	Duration int `json:"duration"`

	// Confidence is 0-100; set from the approved note's overall confidence
	Confidence int `json:"confidence"`

	Transcript string    `json:"transcript,omitempty"`
	SOAPNote   *SOAPNote `json:"soapNote,omitempty"`

	// Terms holds the clinical keywords detected in the transcript
	Terms []string `json:"terms,omitempty"`
}

// Clone returns a deep copy so callers can mutate without touching store-owned data.
func (v Visit) Clone() Visit {
	out := v
	if v.SOAPNote != nil {
		n := v.SOAPNote.Clone()
		out.SOAPNote = &n
	}
	if v.Terms != nil {
		out.Terms = append([]string(nil), v.Terms...)
	}
	return out
}

// Diagnosis is one assessment line.
type Diagnosis struct {
	Diagnosis  string `json:"diagnosis"`
	ICD10      string `json:"icd10"`
	Confidence int    `json:"confidence"`
}

// SOAPNote is the structured clinical document derived from a transcript.
type SOAPNote struct {
	ChiefComplaint    string      `json:"chiefComplaint"`
	Subjective        string      `json:"subjective"`
	Objective         string      `json:"objective"`
	Assessment        []Diagnosis `json:"assessment"`
	Plan              string      `json:"plan"`
	OverallConfidence int         `json:"overallConfidence"`
}

// Clone returns a copy with its own assessment slice.
func (n SOAPNote) Clone() SOAPNote {
	out := n
	out.Assessment = append([]Diagnosis(nil), n.Assessment...)
	return out
}
