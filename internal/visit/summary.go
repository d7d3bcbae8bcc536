package visit

import "time"

// VisitSummary represents a visit's metadata without the transcript or note body.
// Used for dashboard listings to reduce data transfer.
type VisitSummary struct {
	ID             string    `json:"id"`
	PatientName    string    `json:"patientName"`
	PatientAge     int       `json:"patientAge"`
	ChiefComplaint string    `json:"chiefComplaint"`
	VisitType      string    `json:"visitType"`
	Timestamp      time.Time `json:"timestamp"`
	Status         Status    `json:"status"`
	Duration       int       `json:"duration"`
	Confidence     int       `json:"confidence"`

	// HasTranscript reports whether a transcript is attached
	HasTranscript bool `json:"hasTranscript"`

	// HasNote reports whether an approved note is attached
	HasNote bool `json:"hasNote"`
}

// ToSummary converts a Visit to a VisitSummary by stripping the text content.
func (v *Visit) ToSummary() VisitSummary {
	return VisitSummary{
		ID:             v.ID,
		PatientName:    v.PatientName,
		PatientAge:     v.PatientAge,
		ChiefComplaint: v.ChiefComplaint,
		VisitType:      v.VisitType,
		Timestamp:      v.Timestamp,
		Status:         v.Status,
		Duration:       v.Duration,
		Confidence:     v.Confidence,
		HasTranscript:  v.Transcript != "",
		HasNote:        v.SOAPNote != nil,
	}
}

// Summaries converts a slice of visits, preserving order.
func Summaries(visits []Visit) []VisitSummary {
	out := make([]VisitSummary, len(visits))
	for i := range visits {
		out[i] = visits[i].ToSummary()
	}
	return out
}
