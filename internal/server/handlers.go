package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/metadata"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

var errBadRequest = errors.New("bad request")

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollectionList(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListCollections(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if configs == nil {
		configs = []model.CollectionConfig{}
	}

	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req CreateCollectionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	kind, err := distance.ParseKind(req.Distance)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid distance metric: %w", errBadRequest, err))
		return
	}

	cfg := model.CollectionConfig{
		Name:     name,
		Size:     req.Size,
		Distance: kind,
		HNSW:     req.HNSWConfig,
	}

	if err := s.store.CreateCollection(r.Context(), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: fmt.Sprintf("%s collection created successfully", name)})
}

func (s *Server) handleCollectionGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	cfg, err := s.store.LoadConfig(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.store.CountPoints(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CollectionResponse{CollectionConfig: cfg, VectorsCount: n})
}

func (s *Server) handleCollectionDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.store.DeleteCollection(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("%s collection deleted successfully", name)})
}

// handlePayloadAdd accepts a single point object or an array of points.
// Points without an id get a random one.
func (s *Server) handlePayloadAdd(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var raw json.RawMessage
	if err := decode(r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}

	var points []model.Point

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &points); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
	} else {
		var p model.Point
		if err := json.Unmarshal(trimmed, &p); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		points = []model.Point{p}
	}

	for i := range points {
		if points[i].ID == uuid.Nil {
			points[i].ID = uuid.New()
		}
	}

	if err := s.store.AddPoints(r.Context(), name, points); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: fmt.Sprintf("%d payloads added successfully to %s", len(points), name)})
}

// handlePayloadList returns the points of a collection. Query parameters
// filter on exact string equality of metadata values.
func (s *Server) handlePayloadList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	points, err := s.store.LoadPoints(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if q := r.URL.Query(); len(q) > 0 {
		criteria := make(map[string]any, len(q))
		for k := range q {
			criteria[k] = q.Get(k)
		}

		fs, err := metadata.ExactMatch(criteria)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}

		filtered := points[:0]
		for _, p := range points {
			if fs.Matches(metadata.DocumentFromAny(p.Metadata)) {
				filtered = append(filtered, p)
			}
		}
		points = filtered
	}

	if points == nil {
		points = []model.Point{}
	}

	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req SearchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	kind := distance.KindUnspecified
	if req.DistanceType != "" {
		k, err := distance.ParseKind(req.DistanceType)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		kind = k
	}

	results, err := s.searcher.SearchByVector(r.Context(), name, req.QueryVector, topK(req.TopK), kind, searchOptions(req.Filter, req.EF)...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) handleSearchByID(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req SearchByIDRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := uuid.Parse(req.PointID)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: point_id: %w", errBadRequest, err))
		return
	}

	results, err := s.searcher.SearchByID(r.Context(), name, id, topK(req.TopK), searchOptions(req.Filter, 0)...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	kind, err := distance.ParseKind(req.Distance)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	sim, err := s.searcher.ComputeSimilarity(req.VectorA, req.VectorB, kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SimilarityResponse{Similarity: sim})
}

func topK(k int) int {
	if k == 0 {
		return defaultTopK
	}
	return k
}

func searchOptions(filter map[string]any, ef int) []vecsearch.SearchOption {
	var opts []vecsearch.SearchOption
	if len(filter) > 0 {
		opts = append(opts, vecsearch.WithPayloadFilter(filter))
	}
	if ef > 0 {
		opts = append(opts, vecsearch.WithEF(ef))
	}
	return opts
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}

	return nil
}

// statusCode extends vecsearch.StatusCode with the store's errors.
func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrInvalidConfig),
		errors.Is(err, source.ErrInvalidPoint):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrCollectionExists),
		errors.Is(err, source.ErrDuplicatePoint):
		return http.StatusConflict
	case errors.Is(err, source.ErrCollectionNotFound),
		errors.Is(err, source.ErrPointNotFound):
		return http.StatusNotFound
	default:
		return vecsearch.StatusCode(err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, ErrorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
