package engine

// VWAPWindow maintains a volume-weighted average price over the last N
// (price, volume) pairs. Running sums of price*volume and volume make each
// push O(1) amortized; the FIFO of raw pairs bounds memory at N entries.
type VWAPWindow struct {
	size   int
	pairs  []pvPair
	sumPV  float64
	sumVol float64
	pushes int
}

type pvPair struct {
	price  float64
	volume float64
}

// NewVWAPWindow creates a window over the last size pairs. size must be
// positive; defaulting is a caller concern.
func NewVWAPWindow(size int) *VWAPWindow {
	return &VWAPWindow{size: size, pairs: make([]pvPair, 0, size)}
}

// Push appends a bar's (close, volume) pair, evicting the oldest pair once
// the window holds more than its size. It returns the volume-weighted mean
// of the current window and true, or 0 and false while fewer than size
// pairs have ever been pushed or when the windowed volume sum is zero.
func (w *VWAPWindow) Push(price, volume float64) (float64, bool) {
	w.pairs = append(w.pairs, pvPair{price: price, volume: volume})
	w.sumPV += price * volume
	w.sumVol += volume
	w.pushes++

	if len(w.pairs) > w.size {
		old := w.pairs[0]
		w.pairs = w.pairs[1:]
		w.sumPV -= old.price * old.volume
		w.sumVol -= old.volume
	}

	if w.pushes < w.size {
		return 0, false
	}
	if w.sumVol == 0 {
		return 0, false
	}
	return w.sumPV / w.sumVol, true
}

// Len reports the number of pairs currently held.
func (w *VWAPWindow) Len() int { return len(w.pairs) }
