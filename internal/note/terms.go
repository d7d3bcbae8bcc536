package note

import (
	"strings"

	"github.com/samber/lo"
)

// dictionary is the fixed clinical keyword list. ExtractTerms reports matches in this order.
var dictionary = []string{
	"hypertension",
	"diabetes",
	"dyspnea",
	"chest pain",
	"angina",
	"tachycardia",
	"bradycardia",
	"arrhythmia",
	"myocardial infarction",
	"stroke",
	"anemia",
	"asthma",
	"pneumonia",
	"bronchitis",
	"arthritis",
	"headache",
	"nausea",
	"vomiting",
	"diarrhea",
	"constipation",
}

// Dictionary returns a copy of the keyword list.
func Dictionary() []string {
	return append([]string(nil), dictionary...)
}

// ExtractTerms returns the dictionary keywords that occur anywhere in transcript,
// compared case-insensitively. The result is in dictionary order and never nil.
func ExtractTerms(transcript string) []string {
	lower := strings.ToLower(transcript)
	if lower == "" {
		return []string{}
	}
	return lo.Filter(dictionary, func(term string, _ int) bool {
		return strings.Contains(lower, term)
	})
}

// MergeTerms adds newly detected terms to an existing set, keeping first-seen order.
func MergeTerms(existing, detected []string) []string {
	return lo.Uniq(append(append([]string{}, existing...), detected...))
}
