package visit

import (
	"math"
	"strings"
	"time"

	"github.com/samber/lo"
)

// minutesSavedPerVisit is the documentation time credited to each visit on the dashboard.
const minutesSavedPerVisit = 12.5

// avgDocTime is displayed as-is; it is not measured.
const avgDocTime = "2.4m"

// Stats are the dashboard counters.
type Stats struct {
	Today            int    `json:"today"`
	TimeSavedMinutes int    `json:"time_saved_minutes"`
	AvgDocTime       string `json:"avg_doc_time"`
}

// Filter returns the visits whose patient name or chief complaint contains query.
// Matching is case-insensitive and ignores runs of whitespace. A blank query
// returns every visit. Order is preserved.
func Filter(visits []Visit, query string) []Visit {
	q := Normalize(query)
	if q == "" {
		return append(make([]Visit, 0, len(visits)), visits...)
	}
	return lo.Filter(visits, func(v Visit, _ int) bool {
		return strings.Contains(Normalize(v.PatientName), q) ||
			strings.Contains(Normalize(v.ChiefComplaint), q)
	})
}

// ComputeStats derives the dashboard counters. "Today" compares calendar days in now's location.
func ComputeStats(visits []Visit, now time.Time) Stats {
	y, m, d := now.Date()
	today := 0
	for _, v := range visits {
		vy, vm, vd := v.Timestamp.In(now.Location()).Date()
		if vy == y && vm == m && vd == d {
			today++
		}
	}
	return Stats{
		Today:            today,
		TimeSavedMinutes: int(math.Floor(float64(len(visits)) * minutesSavedPerVisit)),
		AvgDocTime:       avgDocTime,
	}
}
