package batchproducer

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// Accumulator folds per-block account updates into a single per-address
// state diff for the batch under construction, mirroring the merge
// semantics of rolluptypes.AccountUpdate.Merge via Go's native
// check-then-mutate-then-store map idiom (no Entry API needed).
type Accumulator struct {
	byAddress map[common.Address]*rolluptypes.AccountUpdate
	messages  []common.Hash
	size      int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byAddress: make(map[common.Address]*rolluptypes.AccountUpdate)}
}

// Clone returns a deep-enough copy so a tentative Add can be tried and
// discarded without mutating the original (used to check blob capacity
// before committing a block to the batch under construction).
func (a *Accumulator) Clone() *Accumulator {
	clone := &Accumulator{
		byAddress: make(map[common.Address]*rolluptypes.AccountUpdate, len(a.byAddress)),
		messages:  append([]common.Hash(nil), a.messages...),
		size:      a.size,
	}
	for addr, u := range a.byAddress {
		copied := *u
		clone.byAddress[addr] = &copied
	}
	return clone
}

// Add folds updates into the accumulator and records the messages the
// owning block emitted. It returns the number of bytes the new state now
// occupies, used by the caller to decide whether the batch still fits a
// blob.
func (a *Accumulator) Add(updates []rolluptypes.AccountUpdate, messages []common.Hash) int {
	for _, u := range updates {
		u := u
		existing, ok := a.byAddress[u.Address]
		if !ok {
			a.byAddress[u.Address] = &u
			continue
		}
		existing.Merge(u)
	}
	a.messages = append(a.messages, messages...)
	a.size = a.encodedSize()
	return a.size
}

// Updates returns the folded account updates in a deterministic order.
func (a *Accumulator) Updates() []rolluptypes.AccountUpdate {
	out := make([]rolluptypes.AccountUpdate, 0, len(a.byAddress))
	for _, u := range a.byAddress {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

func (a *Accumulator) Messages() []common.Hash { return a.messages }

// encodedSize is a conservative upper bound on the diff's blob footprint:
// 20 bytes address + up to 32 balance + up to 8 nonce + code length.
func (a *Accumulator) encodedSize() int {
	total := 0
	for addr, u := range a.byAddress {
		total += len(addr)
		if u.Balance != nil {
			total += len(u.Balance)
		}
		if u.Nonce != nil {
			total += 8
		}
		total += len(u.Code)
	}
	return total
}
