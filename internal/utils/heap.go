package utils

import (
	"cmp"

	"github.com/emirpasic/gods/v2/trees/binaryheap"
)

// MergeCand is one candidate merge of the adjacent tokens starting at Pos.
type MergeCand struct {
	Rank       int // lower wins
	Pos        int // left index; lower wins on tie to enforce leftmost
	LeftToken  int
	RightToken int
	VerL       int
	VerR       int
}

// MergeQueue orders merge candidates by rank, then leftmost position.
type MergeQueue interface {
	Push(c MergeCand)
	Pop() (MergeCand, bool)
	Len() int
	Reset()
}

type mergeHeap struct {
	h *binaryheap.Heap[MergeCand]
}

// NewMergeQueue returns a MergeQueue backed by a binary heap.
func NewMergeQueue() MergeQueue {
	return &mergeHeap{
		h: binaryheap.NewWith(func(a, b MergeCand) int {
			if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
				return c
			}
			return cmp.Compare(a.Pos, b.Pos)
		}),
	}
}

func (q *mergeHeap) Push(c MergeCand) {
	q.h.Push(c)
}

func (q *mergeHeap) Pop() (MergeCand, bool) {
	return q.h.Pop()
}

func (q *mergeHeap) Len() int {
	return q.h.Size()
}

func (q *mergeHeap) Reset() {
	q.h.Clear()
}
