package note

import (
	"regexp"
	"strings"
)

// Section names one of the four SOAP parts.
type Section string

const (
	Subjective Section = "Subjective"
	Objective  Section = "Objective"
	Assessment Section = "Assessment"
	Plan       Section = "Plan"
)

// canonicalSections lists the sections in note order.
var canonicalSections = []Section{Subjective, Objective, Assessment, Plan}

// Sections returns the four SOAP sections in note order.
func Sections() []Section {
	return append([]Section(nil), canonicalSections...)
}

// ParseSection resolves a section name case-insensitively.
func ParseSection(name string) (Section, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range canonicalSections {
		if strings.ToLower(string(s)) == n {
			return s, true
		}
	}
	return "", false
}

// sectionTriggers gate each header search: the lowercased transcript must contain
// one of these words before the header pattern is tried.
var sectionTriggers = map[Section][]string{
	Subjective: {"subjective", "symptoms"},
	Objective:  {"objective", "exam", "vital signs"},
	Assessment: {"assessment", "diagnosis"},
	Plan:       {"plan", "treatment"},
}

// sectionHeaders match a header synonym followed by up to five sentences.
// Group 2 is the section content.
var sectionHeaders = map[Section]*regexp.Regexp{
	Subjective: regexp.MustCompile(`(?i)(subjective:|symptoms:|patient reports:)\s*([^.]*(?:\.[^.]*){0,4})`),
	Objective:  regexp.MustCompile(`(?i)(objective:|examination:|exam:|vital signs:)\s*([^.]*(?:\.[^.]*){0,4})`),
	Assessment: regexp.MustCompile(`(?i)(assessment:|diagnosis:|diagnosed:)\s*([^.]*(?:\.[^.]*){0,4})`),
	Plan:       regexp.MustCompile(`(?i)(plan:|treatment:|prescribed:)\s*([^.]*(?:\.[^.]*){0,4})`),
}

// DetectSections returns the content found under each section header in transcript.
// Sections without a header are absent from the map.
func DetectSections(transcript string) map[Section]string {
	found := make(map[Section]string)
	if transcript == "" {
		return found
	}
	lower := strings.ToLower(transcript)

	for _, s := range canonicalSections {
		if !hasTrigger(lower, sectionTriggers[s]) {
			continue
		}
		m := sectionHeaders[s].FindStringSubmatch(transcript)
		if m == nil {
			continue
		}
		found[s] = strings.TrimSpace(m[2])
	}
	return found
}

// MissingSections returns, in note order, the sections DetectSections did not find.
func MissingSections(transcript string) []Section {
	found := DetectSections(transcript)
	var missing []Section
	for _, s := range canonicalSections {
		if _, ok := found[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

func hasTrigger(lower string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
