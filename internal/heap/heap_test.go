package heap_test

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/heap"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

func orderedBlock(number uint64) rolluptypes.OrderedBlock {
	return rolluptypes.OrderedBlock{Block: &rolluptypes.Block{
		Header: &types.Header{Number: new(big.Int).SetUint64(number)},
	}}
}

func TestPushPopAscendingOrder(t *testing.T) {
	h := heap.New[uint64, rolluptypes.OrderedBlock]()
	for _, n := range []uint64{7, 3, 5, 1, 9} {
		require.True(t, h.Push(orderedBlock(n)))
	}

	var popped []uint64
	for h.Len() > 0 {
		item, ok := h.Pop()
		require.True(t, ok)
		popped = append(popped, item.Key())
	}

	require.Equal(t, []uint64{1, 3, 5, 7, 9}, popped)
}

func TestDuplicateKeyRejected(t *testing.T) {
	h := heap.New[uint64, rolluptypes.OrderedBlock]()
	require.True(t, h.Push(orderedBlock(5)))
	require.False(t, h.Push(orderedBlock(5)))
	require.Equal(t, 1, h.Len())
}

func TestPeekDoesNotRemove(t *testing.T) {
	h := heap.New[uint64, rolluptypes.OrderedBlock]()
	h.Push(orderedBlock(3))
	item, ok := h.Peek()
	require.True(t, ok)
	require.Equal(t, uint64(3), item.Key())
	require.Equal(t, 1, h.Len())
}

func TestPopWaitBlocksUntilPush(t *testing.T) {
	h := heap.New[uint64, rolluptypes.OrderedBlock]()

	var wg sync.WaitGroup
	wg.Add(1)
	var got rolluptypes.OrderedBlock
	go func() {
		defer wg.Done()
		got = h.PopWait()
	}()

	time.Sleep(20 * time.Millisecond)
	h.Push(orderedBlock(42))

	wg.Wait()
	require.Equal(t, uint64(42), got.Key())
}

func TestConcurrentPushesAllObserved(t *testing.T) {
	h := heap.New[uint64, rolluptypes.OrderedBlock]()
	var wg sync.WaitGroup
	for i := uint64(0); i < 100; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			h.Push(orderedBlock(n))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 100, h.Len())

	var last int64 = -1
	for h.Len() > 0 {
		item, _ := h.Pop()
		require.Greater(t, int64(item.Key()), last)
		last = int64(item.Key())
	}
}
