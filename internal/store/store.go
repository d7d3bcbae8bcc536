package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

// Persister saves and restores the whole visit list as one document.
type Persister interface {
	// Load returns the persisted visits. found is false when nothing has been saved yet.
	Load(ctx context.Context) (visits []visit.Visit, found bool, err error)
	// Save replaces the persisted document.
	Save(ctx context.Context, visits []visit.Visit) error
}

// Deleter is implemented by persisters that can drop the saved document.
type Deleter interface {
	Delete(ctx context.Context) error
}

// Store holds the visit list, newest first.
// Every mutation writes the full list through the persister before it becomes visible.
type Store struct {
	mu     sync.Mutex
	visits []visit.Visit
	p      Persister
	log    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open rehydrates the store from p. When nothing has been persisted, seed is used and saved.
func Open(ctx context.Context, p Persister, seed []visit.Visit, opts ...Option) (*Store, error) {
	s := &Store{p: p, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}

	visits, found, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		visits = cloneAll(seed)
		if err := p.Save(ctx, visits); err != nil {
			return nil, errors.NewInternal(err)
		}
		s.log.Info().Int("visits", len(visits)).Msg("seeded visit store")
	}
	if visits == nil {
		visits = []visit.Visit{}
	}
	s.visits = visits
	return s, nil
}

// List returns a copy of every visit in store order.
func (s *Store) List() []visit.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.visits)
}

// Len returns the number of stored visits.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visits)
}

// Get returns a copy of the visit with id.
func (s *Store) Get(id string) (visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.visits[i].Clone(), nil
	}
	return visit.Visit{}, errors.NewNotFound(id)
}

// Upsert replaces the visit with v's id in place, or inserts v at the head.
// The list is persisted before the change is applied; on save failure nothing changes.
func (s *Store) Upsert(ctx context.Context, v visit.Visit) error {
	if v.ID == "" {
		return errors.NewInvalidRequest("visit id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]visit.Visit, 0, len(s.visits)+1)
	i := s.indexOf(v.ID)
	if i < 0 {
		next = append(next, v.Clone())
		next = append(next, s.visits...)
	} else {
		next = append(next, s.visits...)
		next[i] = v.Clone()
	}

	if err := s.p.Save(ctx, next); err != nil {
		return errors.NewInternal(err)
	}
	s.visits = next

	s.log.Debug().
		Str("visit_id", v.ID).
		Str("status", string(v.Status)).
		Bool("replaced", i >= 0).
		Msg("visit upserted")
	return nil
}

// Search returns visits matching query on patient name or chief complaint.
func (s *Store) Search(query string) []visit.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(visit.Filter(s.visits, query))
}

// Stats computes the dashboard counters as of now.
func (s *Store) Stats(now time.Time) visit.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return visit.ComputeStats(s.visits, now)
}

func (s *Store) indexOf(id string) int {
	for i := range s.visits {
		if s.visits[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(in []visit.Visit) []visit.Visit {
	out := make([]visit.Visit, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
