package note

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       []string
	}{
		{
			name:       "case insensitive with punctuation",
			transcript: "Patient has HYPERTENSION.",
			want:       []string{"hypertension"},
		},
		{
			name:       "dictionary order not appearance order",
			transcript: "Complains of nausea, headache and some chest pain; history of diabetes",
			want:       []string{"diabetes", "chest pain", "headache", "nausea"},
		},
		{
			name:       "multi-word term",
			transcript: "Prior Myocardial Infarction in 2019",
			want:       []string{"myocardial infarction"},
		},
		{
			name:       "substring match",
			transcript: "asthmatic since childhood",
			want:       []string{"asthma"},
		},
		{
			name:       "repeated term reported once",
			transcript: "stroke stroke STROKE",
			want:       []string{"stroke"},
		},
		{
			name:       "no match",
			transcript: "Routine follow-up, feeling well.",
			want:       []string{},
		},
		{
			name:       "empty",
			transcript: "",
			want:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTerms(tt.transcript)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTerms_OnlyDictionaryMembers(t *testing.T) {
	all := ""
	for _, term := range Dictionary() {
		all += term + ". "
	}

	got := ExtractTerms(all)
	assert.Equal(t, Dictionary(), got)
}

func TestMergeTerms(t *testing.T) {
	got := MergeTerms([]string{"asthma", "anemia"}, []string{"anemia", "stroke"})
	assert.Equal(t, []string{"asthma", "anemia", "stroke"}, got)
}
