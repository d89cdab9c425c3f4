package training

import (
	"testing"
)

func TestEarlyStopperTriggersOnPatience(t *testing.T) {
	tests := []struct {
		name     string
		patience int
		minDelta float64
		losses   []float64
		stopAt   int // index of the loss that triggers the stop, -1 for never
	}{
		{
			name:     "stops after patience exceeded",
			patience: 3,
			losses:   []float64{1.0, 0.9, 0.95, 0.96, 0.97},
			stopAt:   4,
		},
		{
			name:     "improvement resets counter",
			patience: 2,
			losses:   []float64{1.0, 1.1, 0.8, 0.9, 0.95},
			stopAt:   4,
		},
		{
			name:     "monotonic improvement never stops",
			patience: 1,
			losses:   []float64{1.0, 0.9, 0.8, 0.7},
			stopAt:   -1,
		},
		{
			name:     "loss within min delta does not count",
			patience: 2,
			minDelta: 0.1,
			losses:   []float64{1.0, 1.05, 1.05, 1.05},
			stopAt:   -1,
		},
		{
			name:     "patience one stops on first regression",
			patience: 1,
			losses:   []float64{0.5, 0.6},
			stopAt:   1,
		},
	}

	for _, tt := range tests {
		stopper := NewEarlyStopper(tt.patience, tt.minDelta)
		stopped := -1
		for i, loss := range tt.losses {
			if stopper.Observe(loss) {
				stopped = i
				break
			}
		}
		if stopped != tt.stopAt {
			t.Errorf("%s: expected stop at index %d, got %d", tt.name, tt.stopAt, stopped)
		}
	}
}

func TestEarlyStopperNeverStopsEarly(t *testing.T) {
	// With patience P, a stop requires exactly P consecutive non-improving
	// epochs after the current best.
	for patience := 1; patience <= 5; patience++ {
		stopper := NewEarlyStopper(patience, 0)
		stopper.Observe(1.0)

		for i := 0; i < patience-1; i++ {
			if stopper.Observe(1.5) {
				t.Errorf("patience %d: stopped after only %d bad epochs", patience, i+1)
			}
		}
		if !stopper.Observe(1.5) {
			t.Errorf("patience %d: did not stop on the %d-th bad epoch", patience, patience)
		}
	}
}

func TestEarlyStopperTracksBest(t *testing.T) {
	stopper := NewEarlyStopper(3, 0)
	for _, loss := range []float64{1.0, 0.4, 0.7, 0.6} {
		stopper.Observe(loss)
	}
	if stopper.Best() != 0.4 {
		t.Errorf("expected best loss 0.4, got %f", stopper.Best())
	}
}
