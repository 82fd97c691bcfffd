// Package queue provides the binary heaps used by graph search.
package queue

// Item is a graph node paired with its distance to the query.
type Item struct {
	Node     uint32
	Distance float32
}

// PriorityQueue is a binary heap of Items ordered by (Distance, Node).
//
// A min-queue keeps the closest item on top, a max-queue keeps the farthest.
// Equal distances are ordered by node, so every pop sequence is deterministic.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin returns an empty min-queue.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax returns an empty max-queue.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the top item without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts an item while keeping at most capacity items. On a
// max-queue the farthest item is dropped, on a min-queue the closest.
func (pq *PriorityQueue) PushBounded(item Item, capacity int) {
	if len(pq.items) < capacity {
		pq.Push(item)
		return
	}
	if capacity <= 0 {
		return
	}
	if pq.before(pq.items[0], item) {
		pq.items[0] = item
		pq.siftDown(0)
	}
}

// Pop removes and returns the top item.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]
	if len(pq.items) > 0 {
		pq.siftDown(0)
	}
	return root, true
}

// Reset empties the queue, keeping its capacity.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Sorted drains the queue and returns its items closest first.
func (pq *PriorityQueue) Sorted() []Item {
	out := make([]Item, len(pq.items))
	if pq.isMaxHeap {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = pq.Pop()
		}
		return out
	}
	for i := range out {
		out[i], _ = pq.Pop()
	}
	return out
}

// before reports whether a belongs above b.
func (pq *PriorityQueue) before(a, b Item) bool {
	if pq.isMaxHeap {
		return Closer(b, a)
	}
	return Closer(a, b)
}

// Closer orders items by distance, then by node.
func Closer(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Node < b.Node
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.before(pq.items[i], pq.items[p]) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.before(pq.items[r], pq.items[l]) {
			best = r
		}
		if !pq.before(pq.items[best], pq.items[i]) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
