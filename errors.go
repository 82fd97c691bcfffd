package vecsearch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

var (
	// ErrInvalidArgument is returned for malformed requests: empty queries,
	// non-positive topK, a kind that disagrees with the collection.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is the common parent of ErrCollectionNotFound and ErrPointNotFound.
	ErrNotFound = errors.New("not found")

	// ErrCollectionNotFound is returned when the named collection does not exist.
	ErrCollectionNotFound = fmt.Errorf("%w: collection", ErrNotFound)

	// ErrPointNotFound is returned when a point id is unknown in a collection.
	ErrPointNotFound = fmt.Errorf("%w: point", ErrNotFound)

	// ErrDegenerateVector is returned for cosine operations on a zero vector.
	ErrDegenerateVector = distance.ErrDegenerateVector

	// ErrIndexBuildFailed is returned when a collection's index cannot be built.
	ErrIndexBuildFailed = errors.New("index build failed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// Is makes every dimension mismatch an invalid argument.
func (e *ErrDimensionMismatch) Is(target error) bool {
	return target == ErrInvalidArgument
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, source.ErrCollectionNotFound) {
		return fmt.Errorf("%w: %w", ErrCollectionNotFound, err)
	}
	if errors.Is(err, source.ErrPointNotFound) {
		return fmt.Errorf("%w: %w", ErrPointNotFound, err)
	}

	// Build failures keep the offending point reachable via errors.As.
	var be *index.BuildError
	if errors.As(err, &be) {
		return fmt.Errorf("%w: %w", ErrIndexBuildFailed, err)
	}

	// Dimension and argument normalization.
	var dm *distance.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, distance.ErrDegenerateVector) ||
		errors.Is(err, distance.ErrUnsupportedKind) ||
		errors.Is(err, hnsw.ErrInvalidK) ||
		errors.Is(err, model.ErrInvalidConfig) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}

// StatusCode maps an error returned by a Searcher onto an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
