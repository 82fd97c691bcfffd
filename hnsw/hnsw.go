package hnsw

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/internal/queue"
)

// ErrInvalidK is returned when a search asks for k < 1.
var ErrInvalidK = errors.New("k must be at least 1")

// FilterFunc reports whether a node may appear in search results.
// Rejected nodes are still traversed.
type FilterFunc func(id uint32) bool

// Node represents a node in the HNSW graph
type Node struct {
	Connections [][]uint32 // Links to other nodes, per layer
	Vector      []float32  // Vector (X dimensions)
	Layer       int        // Layer the node exists in the HNSW tree
	ID          uint32     // Insertion ordinal
}

// SearchResult is a node and its graph distance to the query.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new element during construction.
	// Reasonable range for M is 2-100. Higher M works better on datasets with high intrinsic
	// dimensionality and/or high recall, while low M works better for datasets with low intrinsic
	// dimensionality and/or low recalls. The range M=12-48 is ok for most use cases.
	M int

	// EFConstruction is the size of the dynamic candidate list while inserting.
	EFConstruction int

	// EF specifies the default size of the dynamic candidate list at query time.
	// Larger EF values improve recall at the cost of increased search time.
	EF int

	// Heuristic indicates whether to use the neighbour selection heuristic (true) or the
	// naive K-NN selection (false).
	Heuristic bool

	// DistanceFunc is the graph distance. Lower means closer.
	DistanceFunc distance.Func

	// Seed drives level assignment. Equal seeds and equal insertion order
	// produce identical graphs.
	Seed int64
}

// DefaultOptions contains the default HNSW configuration.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EF:             50,
	Heuristic:      true,
	DistanceFunc:   distance.SquaredL2,
	Seed:           42,
}

// HNSW represents the Hierarchical Navigable Small World graph
type HNSW struct {
	dimension int
	mmax      int     // Max number of connections per element/per layer
	mmax0     int     // Max for the 0 layer
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point, a node on the top layer
	maxLevel  int     // Track the current max level used

	nodes []*Node

	opts Options
	rng  *rand.Rand

	mu sync.RWMutex
}

// New creates a new HNSW instance with the given dimension and options
func New(dimension int, optFns ...func(o *Options)) *HNSW {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// 1 / log(1) would divide by zero
		opts.M = 2
	}

	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}

	if opts.EF < 1 {
		opts.EF = DefaultOptions.EF
	}

	if opts.DistanceFunc == nil {
		opts.DistanceFunc = DefaultOptions.DistanceFunc
	}

	return &HNSW{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)), // nolint gosec
	}
}

// Dimension returns the vector dimensionality of the graph.
func (h *HNSW) Dimension() int {
	return h.dimension
}

// Len returns the number of nodes.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.nodes)
}

// Options returns the effective options.
func (h *HNSW) Options() Options {
	return h.opts
}

// Vector returns the stored vector of node id.
func (h *HNSW) Vector(id uint32) ([]float32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if int(id) >= len(h.nodes) {
		return nil, false
	}

	return h.nodes[id].Vector, true
}

func (h *HNSW) randomLevel() int {
	// 1 - Float64 lies in (0, 1], so the log is finite.
	return int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))
}

// Insert inserts a new element into the HNSW graph and returns its ordinal.
// Ordinals are assigned in insertion order starting at 0.
func (h *HNSW) Insert(v []float32) (uint32, error) {
	// Check if dimensions of the input vector match the expected dimension
	if len(v) != h.dimension {
		return 0, &distance.ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	vectorCopy := make([]float32, len(v))
	copy(vectorCopy, v)

	h.mu.Lock()
	defer h.mu.Unlock()

	id := uint32(len(h.nodes))
	layer := h.randomLevel()

	node := &Node{
		ID:          id,
		Vector:      vectorCopy,
		Layer:       layer,
		Connections: make([][]uint32, layer+1),
	}

	if len(h.nodes) == 0 {
		h.nodes = append(h.nodes, node)
		h.ep = id
		h.maxLevel = layer

		return id, nil
	}

	// Find single shortest path from top layers above our current node, which will be our new starting-point
	entry := h.greedyDescend(vectorCopy, layer)

	topCandidates := queue.NewMax(h.opts.EFConstruction)

	// For all levels equal and below our current node, find the top (closest) candidates and create a link
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		h.searchLayer(vectorCopy, entry, topCandidates, h.opts.EFConstruction, level, nil)

		ranked := topCandidates.Sorted()
		entry = ranked[0]

		// Switch type, naive k-NN, or Heuristic HNSW for linking nearest neighbours
		var selected []queue.Item
		if h.opts.Heuristic {
			selected = h.selectNeighboursHeuristic(ranked, h.opts.M)
		} else {
			selected = selectNeighboursSimple(ranked, h.opts.M)
		}

		node.Connections[level] = make([]uint32, len(selected))
		for i, item := range selected {
			node.Connections[level][i] = item.Node
		}
	}

	// Append new node
	h.nodes = append(h.nodes, node)

	// Next link the neighbour nodes to our new node, making it visible
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		for _, neighbour := range node.Connections[level] {
			h.link(neighbour, id, level)
		}
	}

	if layer > h.maxLevel {
		h.ep = id
		h.maxLevel = layer
	}

	return id, nil
}

// greedyDescend walks from the entry point down to stopLevel+1, always
// moving to the closest neighbour, and returns the closest node found.
func (h *HNSW) greedyDescend(q []float32, stopLevel int) queue.Item {
	curr := h.nodes[h.ep]
	currDist := h.opts.DistanceFunc(q, curr.Vector)

	for level := h.maxLevel; level > stopLevel; level-- {
		changed := true
		for changed {
			changed = false

			for _, nodeID := range curr.Connections[level] {
				newDist := h.opts.DistanceFunc(q, h.nodes[nodeID].Vector)
				if newDist < currDist {
					// Update the starting point to our new node
					curr = h.nodes[nodeID]
					currDist = newDist
					changed = true
				}
			}
		}
	}

	return queue.Item{Node: curr.ID, Distance: currDist}
}

// KNNSearch performs a k-nearest neighbor search in the HNSW graph.
//
// Results are ordered by ascending graph distance, ties broken by ordinal.
// An ef below k is raised to k; ef <= 0 uses the configured EF. When ef
// covers the whole graph the search is exhaustive.
func (h *HNSW) KNNSearch(q []float32, k int, ef int, filter FilterFunc) ([]SearchResult, error) {
	if len(q) != h.dimension {
		return nil, &distance.ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	if k < 1 {
		return nil, ErrInvalidK
	}

	if ef <= 0 {
		ef = h.opts.EF
	}

	ef = max(ef, k)

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 {
		return nil, nil
	}

	if ef >= len(h.nodes) {
		return h.bruteSearch(q, k, filter), nil
	}

	entry := h.greedyDescend(q, 0)

	topCandidates := queue.NewMax(ef)
	h.searchLayer(q, entry, topCandidates, ef, 0, filter)

	for topCandidates.Len() > k {
		topCandidates.Pop()
	}

	return toResults(topCandidates.Sorted()), nil
}

// BruteSearch performs an exact linear scan over all nodes.
func (h *HNSW) BruteSearch(q []float32, k int, filter FilterFunc) ([]SearchResult, error) {
	if len(q) != h.dimension {
		return nil, &distance.ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	if k < 1 {
		return nil, ErrInvalidK
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.bruteSearch(q, k, filter), nil
}

func (h *HNSW) bruteSearch(q []float32, k int, filter FilterFunc) []SearchResult {
	topCandidates := queue.NewMax(k)

	for _, node := range h.nodes {
		if filter != nil && !filter(node.ID) {
			continue
		}

		topCandidates.PushBounded(queue.Item{
			Node:     node.ID,
			Distance: h.opts.DistanceFunc(q, node.Vector),
		}, k)
	}

	return toResults(topCandidates.Sorted())
}

func toResults(items []queue.Item) []SearchResult {
	if len(items) == 0 {
		return nil
	}

	out := make([]SearchResult, len(items))
	for i, item := range items {
		out[i] = SearchResult{ID: item.Node, Distance: item.Distance}
	}

	return out
}

// link adds a connection first -> second on level, pruning first's
// connections back to the layer's maximum.
func (h *HNSW) link(first uint32, second uint32, level int) {
	maxConnections := h.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = h.mmax0
	}

	node := h.nodes[first]
	node.Connections[level] = append(node.Connections[level], second)

	if len(node.Connections[level]) <= maxConnections {
		return
	}

	ranked := queue.NewMin(len(node.Connections[level]))

	for _, id := range node.Connections[level] {
		ranked.Push(queue.Item{Node: id, Distance: h.opts.DistanceFunc(node.Vector, h.nodes[id].Vector)})
	}

	candidates := ranked.Sorted()

	var selected []queue.Item
	if h.opts.Heuristic {
		selected = h.selectNeighboursHeuristic(candidates, maxConnections)
	} else {
		selected = selectNeighboursSimple(candidates, maxConnections)
	}

	// Order by best performing match (index 0) .. lowest
	conns := make([]uint32, len(selected))
	for i, item := range selected {
		conns[i] = item.Node
	}

	node.Connections[level] = conns
}

// searchLayer performs a best-first search on one layer. On return
// topCandidates holds at most ef accepted nodes, farthest on top.
func (h *HNSW) searchLayer(q []float32, ep queue.Item, topCandidates *queue.PriorityQueue, ef int, level int, filter FilterFunc) {
	var visited bitset.BitSet

	visited.Set(uint(ep.Node))

	candidates := queue.NewMin(ef)
	candidates.Push(ep)

	topCandidates.Reset()
	if filter == nil || filter(ep.Node) {
		topCandidates.Push(ep)
	}

	for candidates.Len() > 0 {
		candidate, _ := candidates.Pop()

		if top, ok := topCandidates.Top(); ok && topCandidates.Len() >= ef && candidate.Distance > top.Distance {
			break
		}

		node := h.nodes[candidate.Node]
		if len(node.Connections) <= level {
			continue
		}

		for _, n := range node.Connections[level] {
			if visited.Test(uint(n)) {
				continue
			}

			visited.Set(uint(n))

			item := queue.Item{
				Node:     n,
				Distance: h.opts.DistanceFunc(q, h.nodes[n].Vector),
			}

			top, ok := topCandidates.Top()
			if topCandidates.Len() < ef || !ok || queue.Closer(item, top) {
				candidates.Push(item)

				if filter == nil || filter(n) {
					topCandidates.PushBounded(item, ef)
				}
			}
		}
	}
}

// selectNeighboursSimple keeps the M closest candidates. ranked is closest first.
func selectNeighboursSimple(ranked []queue.Item, m int) []queue.Item {
	if len(ranked) > m {
		ranked = ranked[:m]
	}

	return ranked
}

// selectNeighboursHeuristic prefers candidates that are closer to the base
// node than to any already selected neighbour, then fills up with the
// discarded ones. ranked is closest first.
func (h *HNSW) selectNeighboursHeuristic(ranked []queue.Item, m int) []queue.Item {
	if len(ranked) <= m {
		return ranked
	}

	selected := make([]queue.Item, 0, m)
	discarded := make([]queue.Item, 0, len(ranked))

	for _, item := range ranked {
		if len(selected) >= m {
			break
		}

		hit := true

		// Search through each item and determine if distance from node lower for items in set
		for _, s := range selected {
			if h.opts.DistanceFunc(h.nodes[s.Node].Vector, h.nodes[item.Node].Vector) < item.Distance {
				hit = false
				break
			}
		}

		if hit {
			selected = append(selected, item)
		} else {
			discarded = append(discarded, item)
		}
	}

	// Add any additional items from discarded if current items < M
	for _, item := range discarded {
		if len(selected) >= m {
			break
		}

		selected = append(selected, item)
	}

	return selected
}
