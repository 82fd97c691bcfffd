// Package sqlstore implements source.Store on database/sql. The sqlite and
// postgres backends share it and differ only in driver, placeholders and schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

// Dialect captures the differences between SQL backends.
type Dialect int

const (
	// Question uses ? placeholders (SQLite).
	Question Dialect = iota
	// Dollar uses $n placeholders (PostgreSQL).
	Dollar
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if d != Dollar {
		return query
	}

	var (
		b strings.Builder
		n int
	)

	b.Grow(len(query) + 8)

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Store is a source.Store over a migrated database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	codec   codec.Codec
}

// New wraps db. The schema must already exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, codec: codec.GoJSON{}}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

// CreateCollection implements source.Store.
func (s *Store) CreateCollection(ctx context.Context, cfg model.CollectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	hnswConfig, err := s.codec.Marshal(cfg.HNSW)
	if err != nil {
		return fmt.Errorf("marshal hnsw config: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.loadConfig(ctx, tx, cfg.Name); err == nil {
			return fmt.Errorf("%w: %q", source.ErrCollectionExists, cfg.Name)
		} else if !errors.Is(err, source.ErrCollectionNotFound) {
			return err
		}

		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO collections (name, size, distance, config)
			VALUES (?, ?, ?, ?)`),
			cfg.Name, cfg.Size, cfg.Distance.String(), string(hnswConfig),
		)
		if err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}

		return nil
	})
}

// LoadConfig implements source.Source.
func (s *Store) LoadConfig(ctx context.Context, name string) (model.CollectionConfig, error) {
	return s.loadConfig(ctx, s.db, name)
}

func (s *Store) loadConfig(ctx context.Context, db querier, name string) (model.CollectionConfig, error) {
	var (
		cfg        model.CollectionConfig
		kind       string
		hnswConfig string
	)

	err := db.QueryRowContext(ctx, s.q(`
		SELECT name, size, distance, config
		FROM collections WHERE name = ?`), name).Scan(&cfg.Name, &cfg.Size, &kind, &hnswConfig)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("%w: %q", source.ErrCollectionNotFound, name)
	}
	if err != nil {
		return cfg, fmt.Errorf("query collection: %w", err)
	}

	return s.decodeConfig(cfg, kind, hnswConfig)
}

func (s *Store) decodeConfig(cfg model.CollectionConfig, kind, hnswConfig string) (model.CollectionConfig, error) {
	k, err := distance.ParseKind(kind)
	if err != nil {
		return cfg, fmt.Errorf("collection %q: %w", cfg.Name, err)
	}

	cfg.Distance = k

	if hnswConfig != "" {
		if err := s.codec.Unmarshal([]byte(hnswConfig), &cfg.HNSW); err != nil {
			return cfg, fmt.Errorf("unmarshal hnsw config: %w", err)
		}
	}

	return cfg, nil
}

// DeleteCollection implements source.Store. Points are deleted with it.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM vectors WHERE vector_store_name = ?`), name); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}

		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM collections WHERE name = ?`), name)
		if err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}

		if n == 0 {
			return fmt.Errorf("%w: %q", source.ErrCollectionNotFound, name)
		}

		return nil
	})
}

// AddPoints implements source.Store.
func (s *Store) AddPoints(ctx context.Context, name string, points []model.Point) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cfg, err := s.loadConfig(ctx, tx, name)
		if err != nil {
			return err
		}

		if err := source.ValidatePoints(cfg, points); err != nil {
			return err
		}

		for i := range points {
			p := &points[i]

			var one int

			err := tx.QueryRowContext(ctx, s.q(`
				SELECT 1 FROM vectors WHERE vector_store_name = ? AND id = ?`),
				name, p.ID.String()).Scan(&one)
			if err == nil {
				return fmt.Errorf("%w: %s", source.ErrDuplicatePoint, p.ID)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("query vector: %w", err)
			}

			embedding, err := s.codec.Marshal(p.Embedding)
			if err != nil {
				return fmt.Errorf("marshal embedding: %w", err)
			}

			meta := []byte("{}")
			if len(p.Metadata) > 0 {
				if meta, err = s.codec.Marshal(p.Metadata); err != nil {
					return fmt.Errorf("marshal metadata: %w", err)
				}
			}

			_, err = tx.ExecContext(ctx, s.q(`
				INSERT INTO vectors (id, vector_store_name, content, embedding, metadata)
				VALUES (?, ?, ?, ?, ?)`),
				p.ID.String(), name, p.Content, embedding, string(meta),
			)
			if err != nil {
				return fmt.Errorf("insert vector: %w", err)
			}
		}

		return nil
	})
}

// LoadPoints implements source.Source. Points come back in insertion order.
func (s *Store) LoadPoints(ctx context.Context, name string) ([]model.Point, error) {
	if _, err := s.LoadConfig(ctx, name); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, content, embedding, metadata
		FROM vectors WHERE vector_store_name = ?
		ORDER BY seq`), name)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var points []model.Point

	for rows.Next() {
		p, err := s.scanPoint(rows)
		if err != nil {
			return nil, err
		}

		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}

	return points, nil
}

// LoadPoint implements source.Source.
func (s *Store) LoadPoint(ctx context.Context, name string, id uuid.UUID) (model.Point, error) {
	if _, err := s.LoadConfig(ctx, name); err != nil {
		return model.Point{}, err
	}

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, content, embedding, metadata
		FROM vectors WHERE vector_store_name = ? AND id = ?`), name, id.String())

	p, err := s.scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Point{}, fmt.Errorf("%w: %s in %q", source.ErrPointNotFound, id, name)
	}

	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPoint(row scanner) (model.Point, error) {
	var (
		p         model.Point
		id        string
		content   sql.NullString
		embedding []byte
		meta      sql.NullString
	)

	if err := row.Scan(&id, &content, &embedding, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan vector: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return p, fmt.Errorf("parse point id %q: %w", id, err)
	}

	p.ID = parsed
	p.Content = content.String

	if err := s.codec.Unmarshal(embedding, &p.Embedding); err != nil {
		return p, fmt.Errorf("unmarshal embedding of %s: %w", id, err)
	}

	if meta.Valid && meta.String != "" && meta.String != "{}" {
		if err := s.codec.Unmarshal([]byte(meta.String), &p.Metadata); err != nil {
			return p, fmt.Errorf("unmarshal metadata of %s: %w", id, err)
		}
	}

	return p, nil
}

// ListCollections implements source.Store.
func (s *Store) ListCollections(ctx context.Context) ([]model.CollectionConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, size, distance, config FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []model.CollectionConfig

	for rows.Next() {
		var (
			cfg        model.CollectionConfig
			kind       string
			hnswConfig string
		)

		if err := rows.Scan(&cfg.Name, &cfg.Size, &kind, &hnswConfig); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}

		cfg, err := s.decodeConfig(cfg, kind, hnswConfig)
		if err != nil {
			return nil, err
		}

		out = append(out, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	return out, nil
}

// CountPoints implements source.Store.
func (s *Store) CountPoints(ctx context.Context, name string) (int, error) {
	if _, err := s.LoadConfig(ctx, name); err != nil {
		return 0, err
	}

	var n int

	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM vectors WHERE vector_store_name = ?`), name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}

	return n, nil
}

// Close implements source.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}
