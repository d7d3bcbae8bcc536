package note

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscribe/scribe/internal/visit"
)

func TestSynthesize_EmptyTranscript(t *testing.T) {
	s := NewHeuristicSynthesizer(time.Hour) // placeholder path never waits

	n, err := s.Synthesize(context.Background(), Input{ChiefComplaint: "Annual physical"})
	require.NoError(t, err)

	assert.Equal(t, 50, n.OverallConfidence)
	assert.Equal(t, "Annual physical", n.ChiefComplaint)
	require.Len(t, n.Assessment, 1)
	assert.Equal(t, visit.Diagnosis{Diagnosis: "Awaiting physician review", ICD10: "Z00.00", Confidence: 50}, n.Assessment[0])
	assert.Equal(t, "Plan to be determined after physician review.", n.Plan)
}

func TestSynthesize_NoKeywords(t *testing.T) {
	s := NewHeuristicSynthesizer(0)
	transcript := "The patient came in today feeling generally unwell."

	n, err := s.Synthesize(context.Background(), Input{Transcript: transcript})
	require.NoError(t, err)

	assert.Equal(t, 75, n.OverallConfidence)
	assert.Equal(t, "Medical evaluation", n.ChiefComplaint)
	assert.Equal(t, transcript, n.Subjective)
	assert.Equal(t, "Physical examination and vital signs to be documented by physician.", n.Objective)
	assert.Equal(t, []visit.Diagnosis{{Diagnosis: "Preliminary assessment based on patient history", ICD10: "Z00.00", Confidence: 75}}, n.Assessment)
	assert.Equal(t, "Plan to be determined after physician evaluation.", n.Plan)
}

func TestSynthesize_PlanOnly(t *testing.T) {
	s := NewHeuristicSynthesizer(0)
	transcript := "Plan: start metformin 500mg twice daily."

	n, err := s.Synthesize(context.Background(), Input{Transcript: transcript, ChiefComplaint: "Diabetes"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(n.Plan, "start metformin 500mg twice daily"), "plan = %q", n.Plan)
	assert.Equal(t, transcript, n.Subjective)
	assert.Equal(t, "Physical examination and vital signs to be documented by physician.", n.Objective)
	assert.Equal(t, "Z00.00", n.Assessment[0].ICD10)
	assert.Equal(t, 75, n.Assessment[0].Confidence)
	assert.Equal(t, 75, n.OverallConfidence)
}

func TestSynthesize_AssessmentMatched(t *testing.T) {
	s := NewHeuristicSynthesizer(0)

	n, err := s.Synthesize(context.Background(), Input{Transcript: "Diagnosis: acute sinusitis."})
	require.NoError(t, err)

	require.Len(t, n.Assessment, 1)
	assert.Equal(t, "acute sinusitis.", n.Assessment[0].Diagnosis)
	assert.Equal(t, "TBD", n.Assessment[0].ICD10)
	assert.Equal(t, 85, n.Assessment[0].Confidence)
	// overall stays fixed regardless of matches
	assert.Equal(t, 75, n.OverallConfidence)
}

func TestSynthesize_AllSections(t *testing.T) {
	transcript := "Subjective: sore throat. Objective: temperature 38.5. Assessment: pharyngitis. Plan: amoxicillin."

	n := FromTranscript(Input{Transcript: transcript})

	assert.True(t, strings.HasPrefix(n.Subjective, "sore throat."))
	assert.True(t, strings.HasPrefix(n.Objective, "temperature 38"))
	assert.True(t, strings.HasPrefix(n.Assessment[0].Diagnosis, "pharyngitis."))
	assert.Equal(t, "amoxicillin.", n.Plan)
	assert.Equal(t, 75, n.OverallConfidence)
}

func TestSynthesize_HonorsDelay(t *testing.T) {
	s := NewHeuristicSynthesizer(30 * time.Millisecond)

	start := time.Now()
	_, err := s.Synthesize(context.Background(), Input{Transcript: "hello"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSynthesize_CancelledDuringDelay(t *testing.T) {
	s := NewHeuristicSynthesizer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Synthesize(ctx, Input{Transcript: "hello"})
	assert.ErrorIs(t, err, context.Canceled)
}
