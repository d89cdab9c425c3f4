package training

import (
	"math"
)

// EarlyStopper tracks a monotonic-improvement window over the validation loss
// and signals when training should halt. Callers that want early stopping
// disabled simply do not construct one.
type EarlyStopper struct {
	patience int
	minDelta float64
	counter  int
	best     float64
}

// NewEarlyStopper creates an early stopper. patience is the number of
// consecutive non-improving epochs tolerated before stopping; minDelta is the
// slack added to the best-seen loss before an epoch counts as non-improving.
func NewEarlyStopper(patience int, minDelta float64) *EarlyStopper {
	if patience < 1 {
		patience = 1
	}
	if minDelta < 0 {
		minDelta = 0
	}
	return &EarlyStopper{
		patience: patience,
		minDelta: minDelta,
		best:     math.Inf(1),
	}
}

// Observe records a validation loss and returns true exactly when the
// non-improvement counter reaches patience. A strictly better loss resets the
// counter; a loss within [best, best+minDelta] neither improves nor counts
// against patience.
func (es *EarlyStopper) Observe(loss float64) bool {
	if loss < es.best {
		es.best = loss
		es.counter = 0
	} else if loss > es.best+es.minDelta {
		es.counter++
		if es.counter >= es.patience {
			return true
		}
	}
	return false
}

// Best returns the lowest validation loss observed so far
func (es *EarlyStopper) Best() float64 {
	return es.best
}
