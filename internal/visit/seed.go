package visit

import "time"

// Seed returns the sample visits used when no session state has been persisted yet.
// Timestamps are relative to now.
func Seed(now time.Time) []Visit {
	return []Visit{
		{
			ID:             "visit_001",
			PatientName:    "Samuel Faseun",
			PatientAge:     54,
			ChiefComplaint: "Chest pain follow-up",
			VisitType:      "Follow-up",
			Timestamp:      now.Add(-2 * time.Hour),
			Status:         StatusPending,
			Duration:       720,
			Confidence:     94,
		},
		{
			ID:             "visit_002",
			PatientName:    "Asake Remilekun",
			PatientAge:     32,
			ChiefComplaint: "Annual physical",
			VisitType:      "Check-up",
			Timestamp:      now.Add(-5 * time.Hour),
			Status:         StatusApproved,
			Duration:       900,
			Confidence:     98,
		},
		{
			ID:             "visit_003",
			PatientName:    "Jide Folawe",
			PatientAge:     67,
			ChiefComplaint: "Type 2 Diabetes management",
			VisitType:      "Specialist",
			Timestamp:      now.Add(-24 * time.Hour),
			Status:         StatusApproved,
			Duration:       1200,
			Confidence:     92,
		},
		{
			ID:             "visit_004",
			PatientName:    "Oluwaseun Ajayi",
			PatientAge:     29,
			ChiefComplaint: "Abdominal pain",
			VisitType:      "Urgent Care",
			Timestamp:      now.Add(-48 * time.Hour),
			Status:         StatusPending,
			Duration:       600,
			Confidence:     88,
		},
	}
}
