package mpc

import "go.uber.org/atomic"

// warmStart holds the previous solution so the next solve can start near
// it. Reads and writes may come from different cycles' goroutines.
type warmStart struct {
	dims int
	prev atomic.Pointer[[]float64]
}

func newWarmStart(dims int) *warmStart {
	return &warmStart{dims: dims}
}

// seed returns the next starting vector: the held solution advanced one
// step with the final actuation repeated, or zeros when nothing is held.
func (w *warmStart) seed() []float64 {
	seed := make([]float64, w.dims)
	held := w.prev.Load()
	if held == nil {
		return seed
	}
	prev := *held
	// The first actuation pair was already executed; shift it out.
	copy(seed, prev[2:])
	copy(seed[w.dims-2:], prev[w.dims-2:])
	return seed
}

// store keeps a copy of a successful solution for the next seed.
func (w *warmStart) store(x []float64) {
	if len(x) != w.dims {
		return
	}
	held := make([]float64, w.dims)
	copy(held, x)
	w.prev.Store(&held)
}

// invalidate drops the held solution after a failed solve so a bad basin
// is not re-seeded.
func (w *warmStart) invalidate() {
	w.prev.Store(nil)
}
