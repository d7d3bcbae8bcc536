package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

// fakeRow returns a canned payload or error.
type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

// fakeConn keeps one payload per key, enough to exercise the persister's SQL paths.
type fakeConn struct {
	rows    map[string][]byte
	execErr error
	execs   []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{rows: map[string][]byte{}}
}

func (c *fakeConn) QueryRow(_ context.Context, _ string, args ...any) pgRow {
	data, ok := c.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) error {
	c.execs = append(c.execs, sql)
	if c.execErr != nil {
		return c.execErr
	}
	switch len(args) {
	case 1:
		delete(c.rows, args[0].(string))
	case 2:
		c.rows[args[0].(string)] = args[1].([]byte)
	}
	return nil
}

func TestPostgresPersister_LoadAbsent(t *testing.T) {
	p := NewPostgresPersister(newFakeConn(), "sonar_visits")

	_, found, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgresPersister_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	p := NewPostgresPersister(conn, "sonar_visits")

	require.NoError(t, p.Migrate(ctx))
	require.NoError(t, p.Save(ctx, []visit.Visit{{ID: "visit_1", Status: visit.StatusPending}}))

	visits, found, err := p.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, visits, 1)
	assert.Equal(t, visit.StatusPending, visits[0].Status)

	require.NoError(t, p.Delete(ctx))
	_, found, err = p.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Contains(t, conn.execs[0], "CREATE TABLE IF NOT EXISTS session_state")
}

func TestPostgresPersister_Corrupt(t *testing.T) {
	conn := newFakeConn()
	conn.rows["sonar_visits"] = []byte(`"nope"`)

	_, _, err := NewPostgresPersister(conn, "sonar_visits").Load(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCorruptState))
}

func TestPostgresPersister_SaveError(t *testing.T) {
	conn := newFakeConn()
	conn.execErr = fmt.Errorf("connection reset")

	err := NewPostgresPersister(conn, "sonar_visits").Save(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestPostgresPersister_Live(t *testing.T) {
	url := os.Getenv("SCRIBE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SCRIBE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := OpenPool(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	p := NewPostgresPersisterFromPool(pool, "scribe_test_visits")
	require.NoError(t, p.Migrate(ctx))
	t.Cleanup(func() { _ = p.Delete(context.Background()) })

	require.NoError(t, p.Save(ctx, []visit.Visit{{ID: "visit_live"}}))
	visits, found, err := p.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "visit_live", visits[0].ID)
}
