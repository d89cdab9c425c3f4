package training

import (
	"github.com/montanaflynn/stats"
)

// Estimator computes scalar classification metrics from full-epoch true and
// predicted label vectors. Names and Estimate results are index-aligned.
type Estimator interface {
	Names() []string
	Estimate(yTrue, yPred []float64) []float64
}

// ClassifierEstimator computes accuracy, F1, precision, recall and label
// balance. Metrics are computed over the complete accumulated label vectors
// for an epoch rather than averaged per batch, so partial final batches do
// not bias F1 or accuracy.
type ClassifierEstimator struct {
	multiclass bool
}

// NewClassifierEstimator creates an estimator. With multiclass set, precision,
// recall and F1 are macro-averaged over the observed classes.
func NewClassifierEstimator(multiclass bool) *ClassifierEstimator {
	return &ClassifierEstimator{multiclass: multiclass}
}

// Names returns the ordered metric names produced by Estimate
func (e *ClassifierEstimator) Names() []string {
	return []string{"accuracy", "f1", "precision", "recall", "balance_pred", "balance_true"}
}

// Estimate computes the metrics named by Names from aligned label vectors
func (e *ClassifierEstimator) Estimate(yTrue, yPred []float64) []float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return make([]float64, len(e.Names()))
	}

	accuracy := accuracyScore(yTrue, yPred)

	var precision, recall, f1 float64
	if e.multiclass {
		precision, recall, f1 = macroPRF(yTrue, yPred)
	} else {
		precision, recall, f1 = binaryPRF(yTrue, yPred)
	}

	balancePred, _ := stats.Mean(yPred)
	balanceTrue, _ := stats.Mean(yTrue)

	return []float64{accuracy, f1, precision, recall, balancePred, balanceTrue}
}

func accuracyScore(yTrue, yPred []float64) float64 {
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// binaryPRF treats label 1 as the positive class
func binaryPRF(yTrue, yPred []float64) (precision, recall, f1 float64) {
	var tp, fp, fn int
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] != 1:
			fp++
		case yPred[i] != 1 && yTrue[i] == 1:
			fn++
		}
	}

	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// macroPRF averages per-class precision/recall/F1 over every class present in
// the true or predicted labels
func macroPRF(yTrue, yPred []float64) (precision, recall, f1 float64) {
	classes := map[float64]struct{}{}
	for i := range yTrue {
		classes[yTrue[i]] = struct{}{}
		classes[yPred[i]] = struct{}{}
	}
	if len(classes) == 0 {
		return 0, 0, 0
	}

	for c := range classes {
		var tp, fp, fn int
		for i := range yTrue {
			switch {
			case yPred[i] == c && yTrue[i] == c:
				tp++
			case yPred[i] == c && yTrue[i] != c:
				fp++
			case yPred[i] != c && yTrue[i] == c:
				fn++
			}
		}

		var p, r, f float64
		if tp+fp > 0 {
			p = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			r = float64(tp) / float64(tp+fn)
		}
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}

		precision += p
		recall += r
		f1 += f
	}

	n := float64(len(classes))
	return precision / n, recall / n, f1 / n
}
