package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/resource"
)

const (
	magic   = "VSNP"
	version = 1
	ext     = ".snap"
)

var (
	// ErrCorrupt is returned for blobs that are not snapshots of this format.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every blob name.
	Prefix string

	// Compression of newly written snapshots. Reads detect it from the header.
	Compression Compression

	// Controller throttles snapshot writes. Nil means unthrottled.
	Controller *resource.Controller

	// KeepStale keeps snapshots of older point sets when a new one is saved.
	KeepStale bool

	Logger *slog.Logger
}

// DefaultOptions contains the default snapshot configuration.
var DefaultOptions = Options{
	Prefix:      "snapshots/",
	Compression: CompressionZstd,
}

// Store persists built HNSW graphs in a blobstore. A snapshot is keyed by
// a fingerprint of everything the graph depends on, so a changed point
// set never loads an outdated graph.
type Store struct {
	blobs blobstore.Store
	opts  Options
}

// New creates a snapshot store on blobs.
func New(blobs blobstore.Store, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Store{blobs: blobs, opts: opts}
}

// Fingerprint hashes the inputs of graph construction.
func Fingerprint(cfg model.CollectionConfig, points []model.Point, seed int64) uint64 {
	h := xxhash.New()
	params := cfg.HNSW.WithDefaults()

	_, _ = h.WriteString(cfg.Distance.String())

	var buf [8]byte

	for _, v := range []int64{int64(cfg.Size), int64(params.M), int64(params.EFConstruction), int64(params.EFSearch), seed, int64(len(points))} {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}

	for i := range points {
		_, _ = h.Write(points[i].ID[:])

		for _, f := range points[i].Embedding {
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f))
			_, _ = h.Write(buf[:4])
		}
	}

	return h.Sum64()
}

func (s *Store) dir(collection string) string {
	return s.opts.Prefix + url.PathEscape(collection) + "/"
}

func (s *Store) name(collection string, fp uint64) string {
	return s.dir(collection) + strconv.FormatUint(fp, 16) + ext
}

// Load returns the graph stored for exactly this point set. found is false
// when no snapshot exists.
func (s *Store) Load(ctx context.Context, cfg model.CollectionConfig, points []model.Point, seed int64) (*hnsw.HNSW, bool, error) {
	name := s.name(cfg.Name, Fingerprint(cfg, points, seed))

	data, err := s.blobs.Get(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	graph, err := decode(data, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", name, err)
	}

	return graph, true, nil
}

// Save writes the graph of ix. The index must have been built from cfg
// with ix.Seed().
func (s *Store) Save(ctx context.Context, cfg model.CollectionConfig, ix *index.Index) error {
	name := s.name(cfg.Name, Fingerprint(cfg, ix.Points(), ix.Seed()))

	w, err := s.blobs.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", name, err)
	}

	if err := s.encode(ctx, w, ix.Graph()); err != nil {
		_ = w.Abort()
		return fmt.Errorf("write snapshot %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", name, err)
	}

	if !s.opts.KeepStale {
		if err := s.prune(ctx, cfg.Name, name); err != nil {
			s.opts.Logger.Warn("prune snapshots failed", "collection", cfg.Name, "error", err)
		}
	}

	return nil
}

// Delete removes every snapshot of collection.
func (s *Store) Delete(ctx context.Context, collection string) error {
	return s.prune(ctx, collection, "")
}

// List returns the snapshot names of collection.
func (s *Store) List(ctx context.Context, collection string) ([]string, error) {
	return s.blobs.List(ctx, s.dir(collection))
}

func (s *Store) prune(ctx context.Context, collection, keep string) error {
	names, err := s.List(ctx, collection)
	if err != nil {
		return err
	}

	var errs []error

	for _, n := range names {
		if n == keep || !strings.HasSuffix(n, ext) {
			continue
		}

		if err := s.blobs.Delete(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Store) encode(ctx context.Context, w blobstore.WritableBlob, graph *hnsw.HNSW) error {
	out := resource.NewRateLimitedWriter(ctx, w, s.opts.Controller)

	header := []byte{magic[0], magic[1], magic[2], magic[3], version, byte(s.opts.Compression)}
	if _, err := out.Write(header); err != nil {
		return err
	}

	cw, err := s.opts.Compression.newWriter(out)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(cw).Encode(graph); err != nil {
		_ = cw.Close()
		return err
	}

	return cw.Close()
}

func decode(data []byte, cfg model.CollectionConfig) (*hnsw.HNSW, error) {
	if len(data) < 6 || string(data[:4]) != magic {
		return nil, ErrCorrupt
	}

	if data[4] != version {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, data[4])
	}

	space, err := distance.SpaceFor(cfg.Distance)
	if err != nil {
		return nil, err
	}

	r, closeFn, err := Compression(data[5]).newReader(bytes.NewReader(data[6:]))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	graph := hnsw.New(cfg.Size, func(o *hnsw.Options) {
		o.DistanceFunc = space.Func()
	})

	if err := gob.NewDecoder(r).Decode(graph); err != nil {
		return nil, err
	}

	return graph, nil
}
