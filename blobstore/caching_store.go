package blobstore

import (
	"bytes"
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecsearch/resource"
)

// Compile time check to ensure CachingStore satisfies the Store interface.
var _ Store = (*CachingStore)(nil)

// CachingStore keeps recently read blobs of a slower Store in memory.
// Blobs larger than the capacity are never cached. Writes and deletes
// through the CachingStore invalidate the cached copy.
type CachingStore struct {
	inner Store
	rc    *resource.Controller

	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[string]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cachedBlob struct {
	name string
	data []byte
}

// NewCachingStore wraps inner with a cache of capacity bytes. If rc is
// non-nil, cached bytes are charged against its memory limit.
func NewCachingStore(inner Store, capacity int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		inner:     inner,
		rc:        rc,
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get implements Store.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	if el, ok := s.items[name]; ok {
		s.evictList.MoveToFront(el)
		data := el.Value.(*cachedBlob).data
		s.mu.Unlock()

		s.hits.Add(1)

		return bytes.Clone(data), nil
	}
	s.mu.Unlock()

	s.misses.Add(1)

	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	s.add(name, bytes.Clone(data))

	return data, nil
}

// Put implements Store.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.Invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Create implements Store.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.Invalidate(name)
	return s.inner.Create(ctx, name)
}

// Delete implements Store.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.Invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List implements Store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Invalidate drops the cached copy of name.
func (s *CachingStore) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[name]; ok {
		s.removeElement(el)
	}
}

// Stats returns cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Size returns the number of cached bytes.
func (s *CachingStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *CachingStore) add(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemSize := int64(len(data))
	if itemSize > s.capacity {
		return
	}

	if el, ok := s.items[name]; ok {
		s.removeElement(el)
	}

	// Evict locally first so memory returns to the controller before we ask for it.
	for s.size+itemSize > s.capacity {
		el := s.evictList.Back()
		if el == nil {
			break
		}
		s.removeElement(el)
	}

	if !s.rc.TryAcquireMemory(itemSize) {
		return
	}

	s.items[name] = s.evictList.PushFront(&cachedBlob{name: name, data: data})
	s.size += itemSize
}

func (s *CachingStore) removeElement(el *list.Element) {
	s.evictList.Remove(el)

	b := el.Value.(*cachedBlob)
	delete(s.items, b.name)

	itemSize := int64(len(b.data))
	s.size -= itemSize
	s.rc.ReleaseMemory(itemSize)
}
