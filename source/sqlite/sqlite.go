// Package sqlite provides a source.Store on SQLite using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/vecsearch/internal/sqlstore"
	"github.com/hupe1980/vecsearch/internal/sqlstore/migrations"
	"github.com/hupe1980/vecsearch/source"
)

// DefaultPath is used when Open is called with an empty path.
const DefaultPath = "data/vecsearch.db"

// Compile time check to ensure Store satisfies the source.Store interface.
var _ source.Store = (*Store)(nil)

// Store is a SQLite backed source.Store.
type Store struct {
	*sqlstore.Store
}

// Open opens (and migrates) the database at path, creating parent
// directories as needed. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := sqlstore.Migrate(ctx, db, migrations.SQLite, "sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{Store: sqlstore.New(db, sqlstore.Question)}, nil
}
