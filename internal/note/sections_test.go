package note

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSections(t *testing.T) {
	transcript := "Symptoms: cough for three days. Worse at night. " +
		"Exam: lungs clear bilaterally. " +
		"Assessment: viral bronchitis. " +
		"Plan: rest and fluids. Return if fever."

	found := DetectSections(transcript)

	// each header captures up to five sentences, so earlier sections run into later ones
	assert.Equal(t, "cough for three days. Worse at night. Exam: lungs clear bilaterally. Assessment: viral bronchitis. Plan: rest and fluids", found[Subjective])
	assert.Equal(t, "lungs clear bilaterally. Assessment: viral bronchitis. Plan: rest and fluids. Return if fever.", found[Objective])
	assert.Equal(t, "viral bronchitis. Plan: rest and fluids. Return if fever.", found[Assessment])
	assert.Equal(t, "rest and fluids. Return if fever.", found[Plan])
}

func TestDetectSections_TriggerRequired(t *testing.T) {
	// "patient reports:" is a subjective header but neither trigger word appears
	found := DetectSections("Patient reports: mild fatigue.")
	_, ok := found[Subjective]
	assert.False(t, ok)

	found = DetectSections("Patient reports: mild symptoms.")
	assert.Equal(t, "mild symptoms.", found[Subjective])
}

func TestDetectSections_TriggerWithoutHeader(t *testing.T) {
	found := DetectSections("We discussed the treatment plan at length")
	assert.Empty(t, found)
}

func TestDetectSections_Empty(t *testing.T) {
	assert.Empty(t, DetectSections(""))
}

func TestMissingSections(t *testing.T) {
	missing := MissingSections("Plan: start metformin 500mg twice daily.")
	assert.Equal(t, []Section{Subjective, Objective, Assessment}, missing)

	assert.Equal(t, Sections(), MissingSections(""))
}

func TestParseSection(t *testing.T) {
	s, ok := ParseSection(" objective ")
	assert.True(t, ok)
	assert.Equal(t, Objective, s)

	_, ok = ParseSection("history")
	assert.False(t, ok)
}
