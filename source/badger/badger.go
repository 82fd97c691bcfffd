// Package badger provides an embedded source.Store on BadgerDB.
//
// Layout (all keys NUL separated):
//
//	c <name>               collection record
//	p <name> <seq>         point record, seq is a big endian uint64
//	i <name> <uuid>        seq of the point with that id
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

// Compile time check to ensure Store satisfies the source.Store interface.
var _ source.Store = (*Store)(nil)

const sep = 0x00

// Options configures the store.
type Options struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory runs badger without disk persistence.
	InMemory bool

	// Codec encodes records. Defaults to MessagePack.
	Codec codec.Codec

	// Logger receives badger warnings and errors. Nil discards them.
	Logger *slog.Logger
}

// Store is a BadgerDB backed source.Store.
type Store struct {
	db    *badger.DB
	codec codec.Codec

	// Serializes mutations so sequence numbers are handed out in order.
	mu sync.Mutex
}

type collectionRecord struct {
	Size           int    `msgpack:"size" json:"size"`
	Distance       string `msgpack:"distance" json:"distance"`
	M              int    `msgpack:"m" json:"m"`
	EFConstruction int    `msgpack:"ef_construction" json:"ef_construction"`
	EFSearch       int    `msgpack:"ef_search" json:"ef_search"`
	NextSeq        uint64 `msgpack:"next_seq" json:"next_seq"`
}

type pointRecord struct {
	ID        string         `msgpack:"id" json:"id"`
	Content   string         `msgpack:"content" json:"content"`
	Embedding []float32      `msgpack:"embedding" json:"embedding"`
	Metadata  map[string]any `msgpack:"metadata,omitempty" json:"metadata,omitempty"`
}

// Open opens the badger database described by opts.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Options.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{opts.Logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	c := opts.Codec
	if c == nil {
		c = codec.Msgpack{}
	}

	return &Store{db: db, codec: c}, nil
}

func collectionKey(name string) []byte {
	return append([]byte{'c', sep}, name...)
}

func pointPrefix(name string) []byte {
	k := append([]byte{'p', sep}, name...)
	return append(k, sep)
}

func pointKey(name string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(pointPrefix(name), seq)
}

func idPrefix(name string) []byte {
	k := append([]byte{'i', sep}, name...)
	return append(k, sep)
}

func idKey(name string, id uuid.UUID) []byte {
	return append(idPrefix(name), id[:]...)
}

func (s *Store) getCollection(txn *badger.Txn, name string) (collectionRecord, error) {
	var rec collectionRecord

	item, err := txn.Get(collectionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, fmt.Errorf("%w: %q", source.ErrCollectionNotFound, name)
	}
	if err != nil {
		return rec, fmt.Errorf("get collection: %w", err)
	}

	err = item.Value(func(val []byte) error {
		return s.codec.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, fmt.Errorf("decode collection %q: %w", name, err)
	}

	return rec, nil
}

func (s *Store) putCollection(txn *badger.Txn, name string, rec collectionRecord) error {
	val, err := s.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}

	return txn.Set(collectionKey(name), val)
}

func toConfig(name string, rec collectionRecord) (model.CollectionConfig, error) {
	kind, err := distance.ParseKind(rec.Distance)
	if err != nil {
		return model.CollectionConfig{}, fmt.Errorf("collection %q: %w", name, err)
	}

	return model.CollectionConfig{
		Name:     name,
		Size:     rec.Size,
		Distance: kind,
		HNSW: model.HNSWConfig{
			M:              rec.M,
			EFConstruction: rec.EFConstruction,
			EFSearch:       rec.EFSearch,
		},
	}, nil
}

// CreateCollection implements source.Store.
func (s *Store) CreateCollection(_ context.Context, cfg model.CollectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if strings.IndexByte(cfg.Name, sep) >= 0 {
		return fmt.Errorf("%w: name contains NUL", model.ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.getCollection(txn, cfg.Name); err == nil {
			return fmt.Errorf("%w: %q", source.ErrCollectionExists, cfg.Name)
		} else if !errors.Is(err, source.ErrCollectionNotFound) {
			return err
		}

		return s.putCollection(txn, cfg.Name, collectionRecord{
			Size:           cfg.Size,
			Distance:       cfg.Distance.String(),
			M:              cfg.HNSW.M,
			EFConstruction: cfg.HNSW.EFConstruction,
			EFSearch:       cfg.HNSW.EFSearch,
		})
	})
}

// LoadConfig implements source.Source.
func (s *Store) LoadConfig(_ context.Context, name string) (model.CollectionConfig, error) {
	var cfg model.CollectionConfig

	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := s.getCollection(txn, name)
		if err != nil {
			return err
		}

		cfg, err = toConfig(name, rec)

		return err
	})

	return cfg, err
}

// DeleteCollection implements source.Store.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.getCollection(txn, name); err != nil {
			return err
		}

		return txn.Delete(collectionKey(name))
	})
	if err != nil {
		return err
	}

	if err := s.db.DropPrefix(pointPrefix(name), idPrefix(name)); err != nil {
		return fmt.Errorf("drop points of %q: %w", name, err)
	}

	return nil
}

// AddPoints implements source.Store. A batch is written in one transaction,
// so very large batches may fail with badger.ErrTxnTooBig.
func (s *Store) AddPoints(_ context.Context, name string, points []model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.getCollection(txn, name)
		if err != nil {
			return err
		}

		cfg, err := toConfig(name, rec)
		if err != nil {
			return err
		}

		if err := source.ValidatePoints(cfg, points); err != nil {
			return err
		}

		for i := range points {
			_, err := txn.Get(idKey(name, points[i].ID))
			if err == nil {
				return fmt.Errorf("%w: %s", source.ErrDuplicatePoint, points[i].ID)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("get point id: %w", err)
			}
		}

		for i := range points {
			p := &points[i]

			val, err := s.codec.Marshal(pointRecord{
				ID:        p.ID.String(),
				Content:   p.Content,
				Embedding: p.Embedding,
				Metadata:  p.Metadata,
			})
			if err != nil {
				return fmt.Errorf("encode point %s: %w", p.ID, err)
			}

			seq := rec.NextSeq
			rec.NextSeq++

			if err := txn.Set(pointKey(name, seq), val); err != nil {
				return err
			}

			if err := txn.Set(idKey(name, p.ID), binary.BigEndian.AppendUint64(nil, seq)); err != nil {
				return err
			}
		}

		return s.putCollection(txn, name, rec)
	})
}

func (s *Store) decodePoint(val []byte) (model.Point, error) {
	var rec pointRecord

	if err := s.codec.Unmarshal(val, &rec); err != nil {
		return model.Point{}, fmt.Errorf("decode point: %w", err)
	}

	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return model.Point{}, fmt.Errorf("parse point id %q: %w", rec.ID, err)
	}

	return model.Point{
		ID:        id,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  rec.Metadata,
	}, nil
}

// LoadPoints implements source.Source. Keys sort by sequence, so points
// come back in insertion order.
func (s *Store) LoadPoints(_ context.Context, name string) ([]model.Point, error) {
	var points []model.Point

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.getCollection(txn, name); err != nil {
			return err
		}

		prefix := pointPrefix(name)

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p model.Point

			err := it.Item().Value(func(val []byte) error {
				var err error
				p, err = s.decodePoint(val)
				return err
			})
			if err != nil {
				return err
			}

			points = append(points, p)
		}

		return nil
	})

	return points, err
}

// LoadPoint implements source.Source.
func (s *Store) LoadPoint(_ context.Context, name string, id uuid.UUID) (model.Point, error) {
	var p model.Point

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.getCollection(txn, name); err != nil {
			return err
		}

		item, err := txn.Get(idKey(name, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s in %q", source.ErrPointNotFound, id, name)
		}
		if err != nil {
			return fmt.Errorf("get point id: %w", err)
		}

		seqBytes, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(pointKey(name, binary.BigEndian.Uint64(seqBytes)))
		if err != nil {
			return fmt.Errorf("get point %s: %w", id, err)
		}

		return item.Value(func(val []byte) error {
			p, err = s.decodePoint(val)
			return err
		})
	})

	return p, err
}

// ListCollections implements source.Store.
func (s *Store) ListCollections(_ context.Context) ([]model.CollectionConfig, error) {
	var out []model.CollectionConfig

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{'c', sep}

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := string(bytes.TrimPrefix(item.KeyCopy(nil), prefix))

			var rec collectionRecord
			if err := item.Value(func(val []byte) error {
				return s.codec.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode collection %q: %w", name, err)
			}

			cfg, err := toConfig(name, rec)
			if err != nil {
				return err
			}

			out = append(out, cfg)
		}

		return nil
	})

	return out, err
}

// CountPoints implements source.Store.
func (s *Store) CountPoints(_ context.Context, name string) (int, error) {
	var n int

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.getCollection(txn, name); err != nil {
			return err
		}

		prefix := idPrefix(name)

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}

		return nil
	})

	return n, err
}

// Close implements source.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// slogLogger adapts badger's logger to slog, dropping debug and info output.
type slogLogger struct {
	l *slog.Logger
}

func (l slogLogger) Errorf(f string, v ...any) {
	if l.l != nil {
		l.l.Error(strings.TrimSpace(fmt.Sprintf(f, v...)), "component", "badger")
	}
}

func (l slogLogger) Warningf(f string, v ...any) {
	if l.l != nil {
		l.l.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)), "component", "badger")
	}
}

func (slogLogger) Infof(string, ...any)  {}
func (slogLogger) Debugf(string, ...any) {}
