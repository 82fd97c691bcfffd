package metadata

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index combines metadata storage with an inverted index of Roaring Bitmaps.
//
// Architecture:
//   - Primary storage: map[uint32]Document (metadata by ordinal)
//   - Inverted index: field -> valueKey -> bitmap of ordinals
type Index struct {
	mu sync.RWMutex

	documents map[uint32]Document
	inverted  map[string]map[string]*roaring.Bitmap
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		documents: make(map[uint32]Document),
		inverted:  make(map[string]map[string]*roaring.Bitmap),
	}
}

// Set stores metadata for an id and updates the inverted index.
// This replaces any existing metadata for the id. Ids stored with an empty
// document still take part in scans.
func (ix *Index) Set(id uint32, doc Document) {
	if doc == nil {
		doc = Document{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.documents[id]; ok {
		ix.removeLocked(id, old)
	}

	ix.documents[id] = doc

	for key, value := range doc {
		valueMap, ok := ix.inverted[key]
		if !ok {
			valueMap = make(map[string]*roaring.Bitmap)
			ix.inverted[key] = valueMap
		}

		valueKey := value.Key()

		bitmap, ok := valueMap[valueKey]
		if !ok {
			bitmap = roaring.New()
			valueMap[valueKey] = bitmap
		}

		bitmap.Add(id)
	}
}

func (ix *Index) removeLocked(id uint32, doc Document) {
	for key, value := range doc {
		valueMap, ok := ix.inverted[key]
		if !ok {
			continue
		}

		valueKey := value.Key()

		bitmap, ok := valueMap[valueKey]
		if !ok {
			continue
		}

		bitmap.Remove(id)

		if bitmap.IsEmpty() {
			delete(valueMap, valueKey)
			if len(valueMap) == 0 {
				delete(ix.inverted, key)
			}
		}
	}
}

// Get retrieves metadata for an id.
func (ix *Index) Get(id uint32) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	doc, ok := ix.documents[id]
	return doc, ok
}

// Len returns the number of documents in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return len(ix.documents)
}

// Compile resolves a FilterSet into the bitmap of matching ids.
//
// OpEqual and OpIn are answered from posting lists. Other operators are
// evaluated by scanning the candidates that survived the indexed filters.
// A nil or empty set returns nil, meaning "no restriction".
func (ix *Index) Compile(fs *FilterSet) *roaring.Bitmap {
	if fs == nil || len(fs.Filters) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var (
		result   *roaring.Bitmap
		residual []Filter
	)

	for _, filter := range fs.Filters {
		var filterBitmap *roaring.Bitmap

		switch filter.Operator {
		case OpEqual:
			filterBitmap = roaring.New()
			if bitmap := ix.bitmapLocked(filter.Key, filter.Value); bitmap != nil {
				filterBitmap.Or(bitmap)
			}
		case OpIn:
			arr, ok := filter.Value.AsArray()
			if !ok {
				return roaring.New()
			}

			filterBitmap = roaring.New()
			for _, v := range arr {
				if bitmap := ix.bitmapLocked(filter.Key, v); bitmap != nil {
					filterBitmap.Or(bitmap)
				}
			}
		default:
			residual = append(residual, filter)
			continue
		}

		if result == nil {
			result = filterBitmap
		} else {
			result.And(filterBitmap)
		}

		// Early termination if result is empty
		if result.IsEmpty() {
			return result
		}
	}

	if len(residual) == 0 {
		return result
	}

	rest := NewFilterSet(residual...)
	out := roaring.New()

	if result == nil {
		for id, doc := range ix.documents {
			if rest.Matches(doc) {
				out.Add(id)
			}
		}

		return out
	}

	it := result.Iterator()
	for it.HasNext() {
		id := it.Next()
		if rest.Matches(ix.documents[id]) {
			out.Add(id)
		}
	}

	return out
}

func (ix *Index) bitmapLocked(key string, value Value) *roaring.Bitmap {
	valueMap, ok := ix.inverted[key]
	if !ok {
		return nil
	}

	return valueMap[value.Key()]
}

// Stats summarizes an Index.
type Stats struct {
	DocumentCount    int
	FieldCount       int
	BitmapCount      int
	TotalCardinality uint64
	MemoryBytes      uint64
}

// Stats returns statistics about the index.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := Stats{
		DocumentCount: len(ix.documents),
		FieldCount:    len(ix.inverted),
	}

	for _, valueMap := range ix.inverted {
		for _, bitmap := range valueMap {
			stats.BitmapCount++
			stats.TotalCardinality += bitmap.GetCardinality()
			stats.MemoryBytes += bitmap.GetSizeInBytes()
		}
	}

	return stats
}
