package note

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mediscribe/scribe/internal/visit"
)

// Format selects a note export rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want text, markdown or html)", s)
	}
}

// Text renders the plain clipboard form of a note.
func Text(n visit.SOAPNote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CHIEF COMPLAINT: %s\n", n.ChiefComplaint)
	fmt.Fprintf(&b, "SUBJECTIVE: %s\n", n.Subjective)
	fmt.Fprintf(&b, "OBJECTIVE: %s\n", n.Objective)
	b.WriteString("ASSESSMENT:\n")
	for _, d := range n.Assessment {
		fmt.Fprintf(&b, "- %s (%s)\n", d.Diagnosis, d.ICD10)
	}
	fmt.Fprintf(&b, "PLAN: %s", n.Plan)
	return strings.TrimSpace(b.String())
}

// Markdown renders a note as a markdown document.
func Markdown(n visit.SOAPNote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Chief complaint\n\n%s\n\n", n.ChiefComplaint)
	fmt.Fprintf(&b, "## Subjective\n\n%s\n\n", n.Subjective)
	fmt.Fprintf(&b, "## Objective\n\n%s\n\n", n.Objective)
	b.WriteString("## Assessment\n\n")
	if len(n.Assessment) > 0 {
		b.WriteString("| Diagnosis | ICD-10 | Confidence |\n|---|---|---|\n")
		for _, d := range n.Assessment {
			fmt.Fprintf(&b, "| %s | %s | %d%% |\n", escapeCell(d.Diagnosis), escapeCell(d.ICD10), d.Confidence)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "## Plan\n\n%s\n\n", n.Plan)
	fmt.Fprintf(&b, "_Overall confidence: %d%%_\n", n.OverallConfidence)
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the markdown form of a note to HTML. Raw HTML in note fields is not passed through.
func HTML(n visit.SOAPNote) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(n)), &buf); err != nil {
		return "", fmt.Errorf("render note: %w", err)
	}
	return buf.String(), nil
}

// Render produces the note in the requested format.
func Render(n visit.SOAPNote, f Format) (string, error) {
	switch f {
	case FormatMarkdown:
		return Markdown(n), nil
	case FormatHTML:
		return HTML(n)
	default:
		return Text(n), nil
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// DiagnosisEdit changes the label or code of one assessment line.
type DiagnosisEdit struct {
	Diagnosis *string `json:"diagnosis,omitempty"`
	ICD10     *string `json:"icd10,omitempty"`
}

// Edits are reviewer changes to a draft note. Nil fields are left unchanged.
type Edits struct {
	ChiefComplaint *string         `json:"chiefComplaint,omitempty"`
	Subjective     *string         `json:"subjective,omitempty"`
	Objective      *string         `json:"objective,omitempty"`
	Plan           *string         `json:"plan,omitempty"`
	Assessment     []DiagnosisEdit `json:"assessment,omitempty"`
	// AddDiagnoses are appended after Assessment edits are applied.
	AddDiagnoses []string `json:"addDiagnoses,omitempty"`
}

// Edit applies reviewer edits and returns the updated note. Diagnosis confidence is
// system-assigned and never taken from the edit. Assessment edits beyond the current
// number of diagnoses are ignored.
func Edit(n visit.SOAPNote, e Edits) visit.SOAPNote {
	out := n.Clone()
	if e.ChiefComplaint != nil {
		out.ChiefComplaint = *e.ChiefComplaint
	}
	if e.Subjective != nil {
		out.Subjective = *e.Subjective
	}
	if e.Objective != nil {
		out.Objective = *e.Objective
	}
	if e.Plan != nil {
		out.Plan = *e.Plan
	}
	for i, de := range e.Assessment {
		if i >= len(out.Assessment) {
			break
		}
		if de.Diagnosis != nil {
			out.Assessment[i].Diagnosis = *de.Diagnosis
		}
		if de.ICD10 != nil {
			out.Assessment[i].ICD10 = *de.ICD10
		}
	}
	for _, label := range e.AddDiagnoses {
		out = AddDiagnosis(out, label)
	}
	return out
}

// AddDiagnosis appends a reviewer-entered diagnosis with an unresolved code.
func AddDiagnosis(n visit.SOAPNote, label string) visit.SOAPNote {
	out := n.Clone()
	out.Assessment = append(out.Assessment, visit.Diagnosis{
		Diagnosis:  label,
		ICD10:      unresolvedCode,
		Confidence: placeholderConfidence,
	})
	return out
}

// Merge lays a reviewer-submitted note over its draft. Text comes from submitted and
// confidence scores come from draft. Diagnoses past the end of the draft's assessment
// are scored as reviewer-entered ones.
func Merge(draft, submitted visit.SOAPNote) visit.SOAPNote {
	out := submitted.Clone()
	out.OverallConfidence = draft.OverallConfidence
	for i := range out.Assessment {
		if i < len(draft.Assessment) {
			out.Assessment[i].Confidence = draft.Assessment[i].Confidence
			continue
		}
		out.Assessment[i].Confidence = placeholderConfidence
		if out.Assessment[i].ICD10 == "" {
			out.Assessment[i].ICD10 = unresolvedCode
		}
	}
	return out
}
