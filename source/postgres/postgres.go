// Package postgres provides a source.Store on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hupe1980/vecsearch/internal/sqlstore"
	"github.com/hupe1980/vecsearch/internal/sqlstore/migrations"
	"github.com/hupe1980/vecsearch/source"
)

// Compile time check to ensure Store satisfies the source.Store interface.
var _ source.Store = (*Store)(nil)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultOptions contains the pool defaults.
var DefaultOptions = Options{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
	PingTimeout:     10 * time.Second,
}

// Store is a PostgreSQL backed source.Store.
type Store struct {
	*sqlstore.Store
}

// Open connects to dsn, verifies the connection and runs migrations.
func Open(ctx context.Context, dsn string, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := sqlstore.Migrate(ctx, db, migrations.Postgres, "postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{Store: sqlstore.New(db, sqlstore.Dollar)}, nil
}

// Truncate removes every collection and point. Intended for tests.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.DB().ExecContext(ctx, `TRUNCATE vectors, collections`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	return nil
}
