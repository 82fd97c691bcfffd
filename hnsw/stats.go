package hnsw

// Stats summarizes the shape of the graph.
type Stats struct {
	Nodes      int
	MaxLevel   int
	EntryPoint uint32
	M          int
	MMax0      int
	ML         float64

	// Per layer, indexed by level.
	NodesPerLevel       []int
	ConnectionsPerLevel []int
}

// AvgConnections returns the mean out-degree on level, or 0.
func (s Stats) AvgConnections(level int) float64 {
	if level >= len(s.NodesPerLevel) || s.NodesPerLevel[level] == 0 {
		return 0
	}
	return float64(s.ConnectionsPerLevel[level]) / float64(s.NodesPerLevel[level])
}

// Stats returns statistics about the HNSW graph
func (h *HNSW) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		Nodes:      len(h.nodes),
		MaxLevel:   h.maxLevel,
		EntryPoint: h.ep,
		M:          h.mmax,
		MMax0:      h.mmax0,
		ML:         h.ml,
	}

	if len(h.nodes) == 0 {
		return s
	}

	s.NodesPerLevel = make([]int, h.maxLevel+1)
	s.ConnectionsPerLevel = make([]int, h.maxLevel+1)

	for _, node := range h.nodes {
		for level := node.Layer; level >= 0; level-- {
			s.NodesPerLevel[level]++
			s.ConnectionsPerLevel[level] += len(node.Connections[level])
		}
	}

	return s
}
