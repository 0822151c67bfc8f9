package mpc

import (
	"testing"

	"go.viam.com/test"
)

func TestWarmStartEmptySeedsZero(t *testing.T) {
	t.Parallel()
	w := newWarmStart(6)
	test.That(t, w.seed(), test.ShouldResemble, []float64{0, 0, 0, 0, 0, 0})
}

func TestWarmStartShiftsExecutedStep(t *testing.T) {
	t.Parallel()
	w := newWarmStart(6)
	w.store([]float64{1, 2, 3, 4, 5, 6})
	// First pair executed; final pair repeated.
	test.That(t, w.seed(), test.ShouldResemble, []float64{3, 4, 5, 6, 5, 6})
}

func TestWarmStartIgnoresWrongLength(t *testing.T) {
	t.Parallel()
	w := newWarmStart(4)
	w.store([]float64{1, 2})
	test.That(t, w.seed(), test.ShouldResemble, []float64{0, 0, 0, 0})
}

func TestWarmStartInvalidate(t *testing.T) {
	t.Parallel()
	w := newWarmStart(4)
	w.store([]float64{1, 2, 3, 4})
	w.invalidate()
	test.That(t, w.seed(), test.ShouldResemble, []float64{0, 0, 0, 0})
}

func TestWarmStartStoreCopies(t *testing.T) {
	t.Parallel()
	w := newWarmStart(4)
	held := []float64{1, 2, 3, 4}
	w.store(held)
	held[2] = 99
	test.That(t, w.seed()[0], test.ShouldAlmostEqual, 3)
}
