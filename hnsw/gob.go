package hnsw

import (
	"bytes"
	"encoding/gob"
	"math/rand"
)

// Compile time checks to ensure HNSW satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*HNSW)(nil)
	_ gob.GobDecoder = (*HNSW)(nil)
)

// GobEncode method for HNSW.
//
// DistanceFunc is not encoded. Decode into a graph created by New with the
// same DistanceFunc.
func (h *HNSW) GobEncode() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	for _, v := range []any{h.dimension, h.ml, h.ep, h.maxLevel, h.nodes, h.opts} {
		if err := encoder.Encode(v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// GobDecode method for HNSW.
func (h *HNSW) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	var opts Options

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, v := range []any{&h.dimension, &h.ml, &h.ep, &h.maxLevel, &h.nodes, &opts} {
		if err := decoder.Decode(v); err != nil {
			return err
		}
	}

	distanceFunc := h.opts.DistanceFunc
	if distanceFunc == nil {
		distanceFunc = DefaultOptions.DistanceFunc
	}

	opts.DistanceFunc = distanceFunc
	h.opts = opts
	h.mmax = opts.M
	h.mmax0 = 2 * opts.M

	// Later inserts continue deterministically from the decoded size.
	h.rng = rand.New(rand.NewSource(opts.Seed + int64(len(h.nodes)))) // nolint gosec

	return nil
}
