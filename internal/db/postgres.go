package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

// MigrationSessionState is the DDL for the Postgres session_state table.
// It is safe to execute multiple times.
const MigrationSessionState = `
CREATE TABLE IF NOT EXISTS session_state (
    key        TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// pgRow represents a single row returned by QueryRow.
type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the minimal database interface required by PostgresPersister.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) error
}

// PostgresPersister stores the visit document in Postgres. Selected when DATABASE_URL is set.
type PostgresPersister struct {
	db  pgConn
	key string
}

// NewPostgresPersister creates a persister over conn.
func NewPostgresPersister(conn pgConn, key string) *PostgresPersister {
	return &PostgresPersister{db: conn, key: key}
}

// NewPostgresPersisterFromPool wraps a pgx pool.
func NewPostgresPersisterFromPool(pool *pgxpool.Pool, key string) *PostgresPersister {
	return NewPostgresPersister(&poolConn{pool: pool}, key)
}

// OpenPool connects to databaseURL and verifies the connection.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the session_state table if needed.
func (p *PostgresPersister) Migrate(ctx context.Context) error {
	if err := p.db.Exec(ctx, MigrationSessionState); err != nil {
		return fmt.Errorf("migrate session_state: %w", err)
	}
	return nil
}

// Load implements store.Persister.
func (p *PostgresPersister) Load(ctx context.Context) ([]visit.Visit, bool, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT payload FROM session_state WHERE key = $1`, p.key).Scan(&data)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(fmt.Errorf("load session state: %w", err))
	}

	visits, err := decodeVisits(p.key, data)
	if err != nil {
		return nil, false, err
	}
	return visits, true, nil
}

// Save implements store.Persister.
func (p *PostgresPersister) Save(ctx context.Context, visits []visit.Visit) error {
	data, err := encodeVisits(visits)
	if err != nil {
		return errors.NewInternal(err)
	}

	const query = `INSERT INTO session_state (key, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload,
                                updated_at = EXCLUDED.updated_at`

	if err := p.db.Exec(ctx, query, p.key, data); err != nil {
		return errors.NewInternal(fmt.Errorf("save session state: %w", err))
	}
	return nil
}

// Delete implements store.Deleter.
func (p *PostgresPersister) Delete(ctx context.Context) error {
	if err := p.db.Exec(ctx, `DELETE FROM session_state WHERE key = $1`, p.key); err != nil {
		return errors.NewInternal(fmt.Errorf("delete session state: %w", err))
	}
	return nil
}

// isNoRows works with both pgx.ErrNoRows and test fakes.
func isNoRows(err error) bool {
	if err == pgx.ErrNoRows {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no rows")
}

// poolConn adapts *pgxpool.Pool, whose Exec also returns a command tag.
type poolConn struct {
	pool *pgxpool.Pool
}

func (c *poolConn) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return c.pool.QueryRow(ctx, sql, args...)
}

func (c *poolConn) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.pool.Exec(ctx, sql, args...)
	return err
}
