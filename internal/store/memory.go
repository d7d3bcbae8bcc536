package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

// MemoryPersister keeps the serialized visit document in memory.
// It round-trips through JSON so stored data is never aliased.
type MemoryPersister struct {
	mu   sync.Mutex
	key  string
	data []byte

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMemoryPersister returns an empty persister for the given document key.
func NewMemoryPersister(key string) *MemoryPersister {
	return &MemoryPersister{key: key}
}

// Load implements Persister.
func (m *MemoryPersister) Load(_ context.Context) ([]visit.Visit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, false, nil
	}
	var visits []visit.Visit
	if err := json.Unmarshal(m.data, &visits); err != nil {
		return nil, false, errors.NewCorruptState(m.key, err)
	}
	return visits, true, nil
}

// Save implements Persister.
func (m *MemoryPersister) Save(_ context.Context, visits []visit.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := json.Marshal(visits)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// Delete implements Deleter.
func (m *MemoryPersister) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// SetRaw replaces the stored document with raw bytes.
func (m *MemoryPersister) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}
