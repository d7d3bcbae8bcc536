package store

import (
	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ListInput contains parameters for ListPage.
type ListInput struct {
	Query  string // matched against patient name and chief complaint
	Status string // optional status filter
	Limit  int    // default: 20, max: 100
	Offset int
}

// ListOutput contains one page of visit summaries.
type ListOutput struct {
	Items      []visit.VisitSummary `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

// ListPage returns filtered visit summaries in store order.
func (s *Store) ListPage(input ListInput) (*ListOutput, error) {
	var status visit.Status
	if input.Status != "" {
		st, err := visit.ParseStatus(input.Status)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		status = st
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	s.mu.Lock()
	matched := visit.Filter(s.visits, input.Query)
	s.mu.Unlock()

	if status != "" {
		kept := matched[:0]
		for _, v := range matched {
			if v.Status == status {
				kept = append(kept, v)
			}
		}
		matched = kept
	}

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)

	return &ListOutput{
		Items: visit.Summaries(matched[start:end]),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: end < total,
			Total:   total,
		},
	}, nil
}
