package engine

import (
	"container/heap"
	"sort"
)

// medianItem is one volume observation. The sequence number makes items
// with equal values distinguishable so eviction always removes the oldest
// instance of a value, never an arbitrary one.
type medianItem struct {
	value float64
	seq   uint64
}

// itemLess is the total order over observations: by value, ties broken by
// arrival order.
func itemLess(a, b medianItem) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.seq < b.seq
}

type medianHeap struct {
	items []medianItem
	max   bool
}

func (h *medianHeap) Len() int { return len(h.items) }

func (h *medianHeap) Less(i, j int) bool {
	if h.max {
		return itemLess(h.items[j], h.items[i])
	}
	return itemLess(h.items[i], h.items[j])
}

func (h *medianHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *medianHeap) Push(x any) { h.items = append(h.items, x.(medianItem)) }

func (h *medianHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

func (h *medianHeap) top() medianItem { return h.items[0] }

// MedianWindow maintains the median of the last size volume observations
// in FIFO order. It keeps the lower half of the window in a max-heap and
// the upper half in a min-heap, split at the median, with lazy deletion:
// an evicted observation is marked dead and physically removed only when
// it surfaces at a heap top. Live sizes differ by at most one, the lower
// half holding the extra element for odd window sizes. Both push and the
// implied eviction are O(log size) amortized; memory stays O(size) because
// the structure is rebuilt from live items whenever dead marks accumulate
// past the window size.
type MedianWindow struct {
	size    int
	low     medianHeap // max-heap over the lower half
	high    medianHeap // min-heap over the upper half
	lowN    int        // live items in low
	highN   int        // live items in high
	removed map[medianItem]struct{}
	fifo    []medianItem
	seq     uint64
	pushes  int
}

// NewMedianWindow creates a window over the last size observations.
// size must be positive; defaulting is a caller concern.
func NewMedianWindow(size int) *MedianWindow {
	return &MedianWindow{
		size:    size,
		low:     medianHeap{max: true},
		high:    medianHeap{max: false},
		removed: make(map[medianItem]struct{}),
		fifo:    make([]medianItem, 0, size),
	}
}

// Push appends a new volume observation, evicting the oldest one once the
// window holds more than its size. It returns the median of the current
// window and true, or 0 and false while fewer than size observations have
// ever been pushed. For an even size the median is the mean of the two
// middle order statistics.
func (w *MedianWindow) Push(volume float64) (float64, bool) {
	w.seq++
	it := medianItem{value: volume, seq: w.seq}

	w.prune(&w.low)
	if w.lowN == 0 || itemLess(it, w.low.top()) {
		heap.Push(&w.low, it)
		w.lowN++
	} else {
		heap.Push(&w.high, it)
		w.highN++
	}
	w.fifo = append(w.fifo, it)
	w.pushes++

	if len(w.fifo) > w.size {
		w.evict(w.fifo[0])
		w.fifo = w.fifo[1:]
	}
	w.rebalance()

	if len(w.removed) > w.size {
		w.rebuild()
	}

	if w.pushes < w.size {
		return 0, false
	}
	return w.median(), true
}

// Len reports the number of live observations currently in the window.
func (w *MedianWindow) Len() int { return w.lowN + w.highN }

// evict marks the oldest observation dead. The item is still live at this
// point, so it belongs to the lower half exactly when it does not exceed
// the lower half's live maximum.
func (w *MedianWindow) evict(old medianItem) {
	w.prune(&w.low)
	if w.lowN > 0 && !itemLess(w.low.top(), old) {
		w.lowN--
	} else {
		w.highN--
	}
	w.removed[old] = struct{}{}
	w.prune(&w.low)
	w.prune(&w.high)
}

// rebalance restores the size invariant: lowN == highN or lowN == highN+1.
func (w *MedianWindow) rebalance() {
	for w.lowN > w.highN+1 {
		heap.Push(&w.high, w.popLive(&w.low))
		w.lowN--
		w.highN++
	}
	for w.highN > w.lowN {
		heap.Push(&w.low, w.popLive(&w.high))
		w.highN--
		w.lowN++
	}
}

// prune pops dead items off the heap top until a live item surfaces.
func (w *MedianWindow) prune(h *medianHeap) {
	for h.Len() > 0 {
		if _, dead := w.removed[h.top()]; !dead {
			return
		}
		delete(w.removed, h.top())
		heap.Pop(h)
	}
}

func (w *MedianWindow) popLive(h *medianHeap) medianItem {
	w.prune(h)
	return heap.Pop(h).(medianItem)
}

// rebuild discards all dead items and re-splits the live ones at the
// median. Runs at most once per size evictions, so its cost amortizes to
// O(log size) per push.
func (w *MedianWindow) rebuild() {
	live := make([]medianItem, 0, w.lowN+w.highN)
	for _, it := range w.low.items {
		if _, dead := w.removed[it]; !dead {
			live = append(live, it)
		}
	}
	for _, it := range w.high.items {
		if _, dead := w.removed[it]; !dead {
			live = append(live, it)
		}
	}
	sort.Slice(live, func(i, j int) bool { return itemLess(live[i], live[j]) })

	mid := (len(live) + 1) / 2
	w.low.items = append(w.low.items[:0], live[:mid]...)
	w.high.items = append(w.high.items[:0], live[mid:]...)
	heap.Init(&w.low)
	heap.Init(&w.high)
	w.lowN = mid
	w.highN = len(live) - mid
	w.removed = make(map[medianItem]struct{})
}

func (w *MedianWindow) median() float64 {
	w.prune(&w.low)
	if (w.lowN+w.highN)%2 == 1 {
		return w.low.top().value
	}
	w.prune(&w.high)
	return (w.low.top().value + w.high.top().value) / 2
}
