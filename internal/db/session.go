package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

// SQLitePersister stores the visit list as one JSON document in session_state.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

// NewSQLitePersister returns a persister for the document stored under key.
func NewSQLitePersister(db *sql.DB, key string) *SQLitePersister {
	return &SQLitePersister{db: db, key: key}
}

// Load returns the saved visits. found is false if the key has never been written.
// A payload that does not decode as a visit list is a CORRUPT_STATE error.
func (p *SQLitePersister) Load(ctx context.Context) ([]visit.Visit, bool, error) {
	var payload string
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM session_state WHERE key = ?`, p.key,
	).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}

	visits, err := decodeVisits(p.key, []byte(payload))
	if err != nil {
		return nil, false, err
	}
	return visits, true, nil
}

// Save writes the full visit list, replacing the previous document.
func (p *SQLitePersister) Save(ctx context.Context, visits []visit.Visit) error {
	data, err := encodeVisits(visits)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO session_state (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, p.key, string(data), time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Delete removes the document so the next Open re-seeds.
func (p *SQLitePersister) Delete(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, p.key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func encodeVisits(visits []visit.Visit) ([]byte, error) {
	if visits == nil {
		visits = []visit.Visit{}
	}
	return json.Marshal(visits)
}

func decodeVisits(key string, data []byte) ([]visit.Visit, error) {
	var visits []visit.Visit
	if err := json.Unmarshal(data, &visits); err != nil {
		return nil, errors.NewCorruptState(key, err)
	}
	if visits == nil {
		// "null" payload
		return nil, errors.NewCorruptState(key, stderrors.New("payload is not a visit list"))
	}
	return visits, nil
}
