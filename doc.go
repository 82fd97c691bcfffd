// Package vecsearch answers nearest-neighbor queries over named collections
// of embedded points.
//
// Points live in a source.Store (memory, SQLite, PostgreSQL or Badger). A
// Searcher builds one seeded HNSW index per collection on first use, keeps
// it in a bounded cache and serves every later query from it until the
// collection is invalidated.
//
// # Quick Start
//
//	ctx := context.Background()
//	store := memory.New()
//
//	_ = store.CreateCollection(ctx, model.CollectionConfig{
//	    Name:     "docs",
//	    Size:     3,
//	    Distance: distance.KindCosine,
//	})
//
//	s := vecsearch.New(store, vecsearch.WithLogger(vecsearch.NewTextLogger(slog.LevelInfo)))
//	defer s.Close()
//
//	// Writers invalidate the searcher after every mutation.
//	writer := source.WithInvalidation(store, s)
//	_ = writer.AddPoints(ctx, "docs", []model.Point{
//	    model.NewPoint([]float32{1, 0, 0}).WithContent("hello").Build(),
//	})
//
//	results, _ := s.SearchByVector(ctx, "docs", []float32{1, 0, 0}, 5, distance.KindUnspecified)
//
// # Scores
//
// Every result carries a score where higher means more similar:
//
//	Cosine:              (1 + cos) / 2       in [0, 1]
//	Euclidean/Manhattan: 1 / (1 + l2²)       in (0, 1]
//	Dot:                 raw inner product
//
// # Errors
//
// Errors wrap ErrInvalidArgument, ErrCollectionNotFound, ErrPointNotFound,
// ErrIndexBuildFailed or *ErrDimensionMismatch. StatusCode maps them onto
// HTTP status codes.
//
// # Persistence
//
// Built graphs can be written to a blob store (local disk, S3 or MinIO)
// through the snapshot package so that a restarted process restores
// instead of rebuilding:
//
//	blobs, _ := blobstore.NewLocalStore("./data/blobs")
//	s := vecsearch.New(store, vecsearch.WithSnapshots(snapshot.New(blobs)))
package vecsearch
