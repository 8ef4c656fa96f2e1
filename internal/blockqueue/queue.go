// Package blockqueue implements the signed block queue and its draining
// processor (C12): blocks popped from the pending heap in height order
// are appended to the chain and used to advance fork choice.
package blockqueue

import (
	"github.com/0xkanth/mojave-sequencer/internal/heap"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// Queue is a height-ordered, deduped queue of blocks ready to be
// appended to the chain. It is strictly drained in ascending height
// order because the ingestor only ever pushes in order.
type Queue struct {
	heap *heap.UniqueHeap[uint64, rolluptypes.OrderedBlock]
}

func NewQueue() *Queue {
	return &Queue{heap: heap.New[uint64, rolluptypes.OrderedBlock]()}
}

// Push enqueues block, returning false if its height is already queued.
func (q *Queue) Push(block *rolluptypes.Block) bool {
	return q.heap.Push(rolluptypes.OrderedBlock{Block: block})
}

// PopWait blocks until a block is available, then returns it.
func (q *Queue) PopWait() *rolluptypes.Block {
	return q.heap.PopWait().Block
}

func (q *Queue) Len() int { return q.heap.Len() }
