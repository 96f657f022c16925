package trainer

import (
	"github.com/bpetok/internal/tokenizer"
	"github.com/bpetok/internal/utils"
)

// pairState is the bookkeeping for one pair. The queue priority of handle equals len(positions)
// whenever control is outside record/drop.
type pairState struct {
	handle    utils.Handle
	positions []int
}

// occurrenceIndex maps each mergeable pair to the stream positions where it currently starts a live
// adjacency, and owns that pair's queue handle. A pair is present iff it has at least one position.
//
// A position starts at most one adjacency at a time, so slot[pos] can remember where pos sits
// inside its pair's positions slice and removal is a swap-remove instead of a scan.
type occurrenceIndex struct {
	pairs     map[tokenizer.Pair]*pairState
	slot      []int
	queue     *utils.IndexedHeap[tokenizer.Pair]
	mergeable func(tokenizer.Pair) bool
}

func newOccurrenceIndex(n int, queue *utils.IndexedHeap[tokenizer.Pair], mergeable func(tokenizer.Pair) bool) *occurrenceIndex {
	slot := make([]int, n)
	for i := range slot {
		slot[i] = -1
	}

	return &occurrenceIndex{
		pairs:     make(map[tokenizer.Pair]*pairState),
		slot:      slot,
		queue:     queue,
		mergeable: mergeable,
	}
}

// ensure returns the state for p, creating it with priority 0 and queueing its handle if needed.
// Pairs that would cross a word boundary are never created.
func (x *occurrenceIndex) ensure(p tokenizer.Pair) (*pairState, bool) {
	if st, ok := x.pairs[p]; ok {
		return st, true
	}
	if !x.mergeable(p) {
		return nil, false
	}

	st := &pairState{handle: x.queue.Alloc(p)}
	x.queue.Push(st.handle)
	x.pairs[p] = st
	return st, true
}

// record adds pos as an occurrence of p and bumps its priority.
func (x *occurrenceIndex) record(p tokenizer.Pair, pos int) {
	st, ok := x.ensure(p)
	if !ok {
		return
	}

	x.slot[pos] = len(st.positions)
	st.positions = append(st.positions, pos)
	x.queue.IncreasePriority(st.handle, 1)
}

// drop removes one occurrence of pos from p and lowers its priority. The pair is erased once its
// last occurrence is gone.
func (x *occurrenceIndex) drop(p tokenizer.Pair, pos int) {
	st, ok := x.pairs[p]
	if !ok {
		return
	}

	i := x.slot[pos]
	if i < 0 || i >= len(st.positions) || st.positions[i] != pos {
		// slot belongs to some other pair; fall back to a scan
		i = -1
		for k, q := range st.positions {
			if q == pos {
				i = k
				break
			}
		}
		if i < 0 {
			return
		}
	}

	last := len(st.positions) - 1
	moved := st.positions[last]
	st.positions[i] = moved
	x.slot[moved] = i
	st.positions = st.positions[:last]
	x.slot[pos] = -1

	x.queue.DecreasePriority(st.handle, 1)

	if len(st.positions) == 0 {
		x.erase(p)
	}
}

// erase discards p entirely and releases its queue handle.
func (x *occurrenceIndex) erase(p tokenizer.Pair) {
	st, ok := x.pairs[p]
	if !ok {
		return
	}

	for _, pos := range st.positions {
		if x.slot[pos] >= 0 && x.slot[pos] < len(st.positions) && st.positions[x.slot[pos]] == pos {
			x.slot[pos] = -1
		}
	}

	delete(x.pairs, p)
	x.queue.Release(st.handle)
}

func (x *occurrenceIndex) lookup(p tokenizer.Pair) (*pairState, bool) {
	st, ok := x.pairs[p]
	return st, ok
}

// count is the number of live occurrences of p.
func (x *occurrenceIndex) count(p tokenizer.Pair) int {
	if st, ok := x.pairs[p]; ok {
		return len(st.positions)
	}
	return 0
}

func (x *occurrenceIndex) size() int {
	return len(x.pairs)
}
