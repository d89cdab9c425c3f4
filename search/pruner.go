package search

import (
	"github.com/montanaflynn/stats"
)

// Pruner decides whether a running trial should be aborted early based on its
// per-epoch intermediate values. Report records one value and returns true to
// abort; Finish marks a trial complete so its history joins the baseline
// future trials are compared against.
type Pruner interface {
	Report(trial, epoch int, value float64) bool
	Finish(trial int)
}

// NopPruner never prunes
type NopPruner struct{}

func (NopPruner) Report(trial, epoch int, value float64) bool { return false }

func (NopPruner) Finish(trial int) {}

// MedianPruner aborts a trial whose intermediate value at an epoch is worse
// than the median of completed trials' values at the same epoch. Trainers
// report validation losses, so lower values are better here regardless of the
// study's objective direction.
type MedianPruner struct {
	warmupEpochs int
	minTrials    int
	history      map[int][]float64
	completed    []int
}

// NewMedianPruner creates a median pruner. No trial is pruned before
// warmupEpochs of its own epochs have been observed, or before minTrials
// trials have run to completion.
func NewMedianPruner(warmupEpochs, minTrials int) *MedianPruner {
	if warmupEpochs < 0 {
		warmupEpochs = 0
	}
	if minTrials < 1 {
		minTrials = 1
	}
	return &MedianPruner{
		warmupEpochs: warmupEpochs,
		minTrials:    minTrials,
		history:      make(map[int][]float64),
	}
}

// Report records one intermediate value and reports whether to abort
func (p *MedianPruner) Report(trial, epoch int, value float64) bool {
	p.history[trial] = append(p.history[trial], value)

	if epoch < p.warmupEpochs || len(p.completed) < p.minTrials {
		return false
	}

	step := len(p.history[trial]) - 1
	var baseline []float64
	for _, done := range p.completed {
		series := p.history[done]
		if step < len(series) {
			baseline = append(baseline, series[step])
		}
	}
	if len(baseline) == 0 {
		return false
	}

	median, err := stats.Median(baseline)
	if err != nil {
		return false
	}
	return value > median
}

// Finish marks a trial complete
func (p *MedianPruner) Finish(trial int) {
	p.completed = append(p.completed, trial)
}
