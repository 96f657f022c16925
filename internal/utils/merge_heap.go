package utils

import "fmt"

// Handle addresses a node in an IndexedHeap arena. A handle stays valid until it is released;
// after that the slot may be handed out again by Alloc.
type Handle int32

// NoHandle is the zero value callers use for "not allocated".
const NoHandle Handle = -1

type heapNode[K any] struct {
	key      K
	priority int
	slot     int // index into items, -1 when not queued
	live     bool
}

// IndexedHeap is a binary max-heap whose elements are arena handles rather than values.
// Every node records its own slot in the heap array, so arbitrary priority changes and removals
// are O(log n) without searching.
//
// Invariants:
//   - items[nodes[h].slot] == h for every queued handle h
//   - a handle appears in items at most once
//   - for equal priorities, tie decides the order (tie(a, b) == true means a pops first)
type IndexedHeap[K any] struct {
	nodes []heapNode[K]
	free  []Handle
	items []Handle
	tie   func(a, b K) bool
}

// NewIndexedHeap creates an empty heap. tie may be nil, in which case equal priorities pop in
// handle order.
func NewIndexedHeap[K any](tie func(a, b K) bool) *IndexedHeap[K] {
	return &IndexedHeap[K]{
		items: make([]Handle, 0, 64),
		tie:   tie,
	}
}

// Alloc reserves a handle for key with priority 0. The handle is not queued until Push.
func (h *IndexedHeap[K]) Alloc(key K) Handle {
	var id Handle
	if n := len(h.free); n > 0 {
		id = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		id = Handle(len(h.nodes))
		h.nodes = append(h.nodes, heapNode[K]{})
	}

	h.nodes[id] = heapNode[K]{key: key, slot: -1, live: true}
	return id
}

// Release removes the handle from the heap if it is queued and returns its arena slot.
func (h *IndexedHeap[K]) Release(id Handle) {
	n := h.node(id)
	if n.slot >= 0 {
		h.Remove(id)
	}

	var zero K
	n.key = zero
	n.priority = 0
	n.live = false
	h.free = append(h.free, id)
}

// Key returns the key stored under id.
func (h *IndexedHeap[K]) Key(id Handle) K {
	return h.node(id).key
}

// Priority returns the current priority of id.
func (h *IndexedHeap[K]) Priority(id Handle) int {
	return h.node(id).priority
}

// Queued reports whether id is currently an element of the heap.
func (h *IndexedHeap[K]) Queued(id Handle) bool {
	return h.node(id).slot >= 0
}

// Valid reports whether id refers to an allocated node.
func (h *IndexedHeap[K]) Valid(id Handle) bool {
	return id >= 0 && int(id) < len(h.nodes) && h.nodes[id].live
}

// Push inserts id into the heap. Pushing a handle that is already queued only repositions it.
func (h *IndexedHeap[K]) Push(id Handle) {
	n := h.node(id)
	if n.slot >= 0 {
		h.fix(n.slot)
		return
	}

	n.slot = len(h.items)
	h.items = append(h.items, id)
	h.up(n.slot)
}

// IncreasePriority raises the priority of id by delta and bubbles it towards the root.
func (h *IndexedHeap[K]) IncreasePriority(id Handle, delta int) {
	n := h.node(id)
	n.priority += delta
	if n.slot >= 0 {
		h.up(n.slot)
	}
}

// DecreasePriority lowers the priority of id by delta, clamped at zero, and bubbles it towards
// the leaves.
func (h *IndexedHeap[K]) DecreasePriority(id Handle, delta int) {
	n := h.node(id)
	n.priority = max(n.priority-delta, 0)
	if n.slot >= 0 {
		h.down(n.slot)
	}
}

// PopMax removes and returns the handle with the highest priority. The handle stays allocated:
// callers must validate it against their own bookkeeping and Release it when done.
func (h *IndexedHeap[K]) PopMax() (Handle, bool) {
	if len(h.items) == 0 {
		return NoHandle, false
	}

	top := h.items[0]
	h.Remove(top)
	return top, true
}

// Peek returns the handle with the highest priority without removing it.
func (h *IndexedHeap[K]) Peek() (Handle, bool) {
	if len(h.items) == 0 {
		return NoHandle, false
	}
	return h.items[0], true
}

// Remove takes id out of the heap (swap with the last leaf, then restore order in whichever
// direction is needed). Removing a handle that is not queued is a no-op.
func (h *IndexedHeap[K]) Remove(id Handle) {
	n := h.node(id)
	i := n.slot
	if i < 0 {
		return
	}

	last := len(h.items) - 1
	if i != last {
		h.swap(i, last)
	}
	h.items = h.items[:last]
	n.slot = -1

	if i < len(h.items) {
		h.fix(i)
	}
}

// Len is the number of queued handles.
func (h *IndexedHeap[K]) Len() int {
	return len(h.items)
}

// Empty reports whether no handle is queued.
func (h *IndexedHeap[K]) Empty() bool {
	return len(h.items) == 0
}

// Allocated is the number of live handles, queued or not.
func (h *IndexedHeap[K]) Allocated() int {
	return len(h.nodes) - len(h.free)
}

// Reset drops every handle and queued element, keeping the allocated storage for reuse.
func (h *IndexedHeap[K]) Reset() {
	h.nodes = h.nodes[:0]
	h.free = h.free[:0]
	h.items = h.items[:0]
}

func (h *IndexedHeap[K]) node(id Handle) *heapNode[K] {
	if !h.Valid(id) {
		panic(fmt.Sprintf("utils: invalid heap handle %d", id))
	}
	return &h.nodes[id]
}

// higher reports whether the element at slot i must sit above the element at slot j.
func (h *IndexedHeap[K]) higher(i, j int) bool {
	a, b := &h.nodes[h.items[i]], &h.nodes[h.items[j]]
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if h.tie != nil {
		return h.tie(a.key, b.key)
	}
	return h.items[i] < h.items[j]
}

func (h *IndexedHeap[K]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.nodes[h.items[i]].slot = i
	h.nodes[h.items[j]].slot = j
}

func (h *IndexedHeap[K]) fix(i int) {
	if !h.up(i) {
		h.down(i)
	}
}

func (h *IndexedHeap[K]) up(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.higher(i, parent) {
			break
		}
		h.swap(parent, i)
		i = parent
		moved = true
	}
	return moved
}

func (h *IndexedHeap[K]) down(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		right := 2*i + 2
		largest := i

		if left < n && h.higher(left, largest) {
			largest = left
		}
		if right < n && h.higher(right, largest) {
			largest = right
		}
		if largest == i {
			break
		}
		h.swap(i, largest)
		i = largest
	}
}
