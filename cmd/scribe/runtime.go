package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe/internal/config"
	"github.com/mediscribe/scribe/internal/db"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/visit"
)

// newLogger returns a JSON logger on w, or a console logger in development.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Str("service", "scribe").Logger()
}

// persister is the session-state backend chosen by configuration.
type persister interface {
	store.Persister
	store.Deleter
}

// openPersister selects Postgres when DATABASE_URL is set, otherwise SQLite in DataDir.
// The returned func releases the connection.
func openPersister(ctx context.Context, cfg *config.Config) (persister, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := db.OpenPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		p := db.NewPostgresPersisterFromPool(pool, cfg.SessionKey)
		if err := p.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return p, pool.Close, nil
	}

	database, err := db.Init(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db.NewSQLitePersister(database, cfg.SessionKey), func() { database.Close() }, nil
}

// openStore loads the visit store, seeding it on first run.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store.Store, func(), error) {
	p, closeFn, err := openPersister(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, p, visit.Seed(time.Now()), store.WithLogger(log))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return st, closeFn, nil
}
