// Package heap implements a unique, thread-safe min-heap keyed by a
// comparable key, used by the pending block heap and the signed block
// queue (C2). Pushing an item whose key is already present is a no-op.
package heap

import (
	"container/heap"
	"sync"
)

// Item is anything that can live in the heap: it must expose a unique
// key and a total order against other items of the same type.
type Item[K comparable] interface {
	Key() K
	Less(other any) bool
}

// UniqueHeap is a thread-safe min-heap deduped by key.
type UniqueHeap[K comparable, V Item[K]] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backing innerHeap[K, V]
	present map[K]struct{}
}

// New constructs an empty UniqueHeap.
func New[K comparable, V Item[K]]() *UniqueHeap[K, V] {
	h := &UniqueHeap[K, V]{
		backing: innerHeap[K, V]{},
		present: make(map[K]struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Push inserts item unless its key is already present, returning whether
// it was inserted. Pushing transitions the heap empty->non-empty wakes
// every _Wait caller.
func (h *UniqueHeap[K, V]) Push(item V) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := item.Key()
	if _, ok := h.present[key]; ok {
		return false
	}

	wasEmpty := h.backing.Len() == 0
	h.present[key] = struct{}{}
	heap.Push(&h.backing, item)
	if wasEmpty {
		h.cond.Broadcast()
	}
	return true
}

// Pop removes and returns the minimum item, if any.
func (h *UniqueHeap[K, V]) Pop() (V, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.popLocked()
}

func (h *UniqueHeap[K, V]) popLocked() (V, bool) {
	var zero V
	if h.backing.Len() == 0 {
		return zero, false
	}
	item := heap.Pop(&h.backing).(V)
	delete(h.present, item.Key())
	return item, true
}

// Peek returns the minimum item without removing it.
func (h *UniqueHeap[K, V]) Peek() (V, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero V
	if h.backing.Len() == 0 {
		return zero, false
	}
	return h.backing[0], true
}

// PopWait blocks until an item is available, then pops it.
func (h *UniqueHeap[K, V]) PopWait() V {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.backing.Len() == 0 {
		h.cond.Wait()
	}
	item, _ := h.popLocked()
	return item
}

// PeekWait blocks until an item is available, then returns it without
// removing it.
func (h *UniqueHeap[K, V]) PeekWait() V {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.backing.Len() == 0 {
		h.cond.Wait()
	}
	return h.backing[0]
}

// Len returns the current number of items.
func (h *UniqueHeap[K, V]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backing.Len()
}

// IsEmpty reports whether the heap currently holds no items.
func (h *UniqueHeap[K, V]) IsEmpty() bool {
	return h.Len() == 0
}

// innerHeap adapts []V to container/heap.Interface.
type innerHeap[K comparable, V Item[K]] []V

func (s innerHeap[K, V]) Len() int { return len(s) }
func (s innerHeap[K, V]) Less(i, j int) bool {
	return s[i].Less(s[j])
}
func (s innerHeap[K, V]) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *innerHeap[K, V]) Push(x any) {
	*s = append(*s, x.(V))
}

func (s *innerHeap[K, V]) Pop() any {
	old := *s
	n := len(old)
	item := old[n-1]
	*s = old[:n-1]
	return item
}
