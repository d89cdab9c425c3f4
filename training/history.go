package training

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// Splits logged by the trainer
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// History holds per-epoch metric values keyed by split and metric name. The
// metric set is fixed at construction; every split receives one value per
// metric per epoch.
type History struct {
	names []string
	data  map[string]map[string][]float64
}

// NewHistory creates a history for the given ordered metric names
func NewHistory(names []string) *History {
	data := map[string]map[string][]float64{
		SplitTrain: make(map[string][]float64, len(names)),
		SplitTest:  make(map[string][]float64, len(names)),
	}
	for split := range data {
		for _, name := range names {
			data[split][name] = nil
		}
	}
	return &History{
		names: append([]string(nil), names...),
		data:  data,
	}
}

// Names returns the ordered metric names
func (h *History) Names() []string {
	return h.names
}

// Append records one epoch of values for a split, aligned with Names
func (h *History) Append(split string, values []float64) error {
	metrics, ok := h.data[split]
	if !ok {
		return fmt.Errorf("unknown split %q", split)
	}
	if len(values) != len(h.names) {
		return fmt.Errorf("expected %d metric values, got %d", len(h.names), len(values))
	}
	for i, name := range h.names {
		metrics[name] = append(metrics[name], values[i])
	}
	return nil
}

// Metric returns the per-epoch series for one metric of one split
func (h *History) Metric(split, name string) []float64 {
	if metrics, ok := h.data[split]; ok {
		return metrics[name]
	}
	return nil
}

// Epochs returns the number of epochs recorded for a split
func (h *History) Epochs(split string) int {
	metrics, ok := h.data[split]
	if !ok || len(h.names) == 0 {
		return 0
	}
	return len(metrics[h.names[0]])
}

// csvColumns is the metric set epochRecord can serialize, in column order.
// SaveCSV is pinned to the classifier estimator's schema; a history built for
// a different metric set is rejected rather than losing columns.
var csvColumns = []string{"loss", "accuracy", "f1", "precision", "recall", "balance_pred", "balance_true"}

// epochRecord is one CSV row of per-epoch metrics. The columns mirror the
// classifier estimator's metric set.
type epochRecord struct {
	Epoch       int     `csv:"epoch"`
	Split       string  `csv:"split"`
	Loss        float64 `csv:"loss"`
	Accuracy    float64 `csv:"accuracy"`
	F1          float64 `csv:"f1"`
	Precision   float64 `csv:"precision"`
	Recall      float64 `csv:"recall"`
	BalancePred float64 `csv:"balance_pred"`
	BalanceTrue float64 `csv:"balance_true"`
}

// SaveCSV writes the history as a tabular CSV with one row per (epoch, split).
// I/O errors are returned to the caller without retrying.
func (h *History) SaveCSV(path string) error {
	if err := h.checkColumns(); err != nil {
		return err
	}

	var rows []*epochRecord
	for _, split := range []string{SplitTrain, SplitTest} {
		metrics := h.data[split]
		for epoch := 0; epoch < h.Epochs(split); epoch++ {
			rows = append(rows, &epochRecord{
				Epoch:       epoch + 1,
				Split:       split,
				Loss:        seriesAt(metrics["loss"], epoch),
				Accuracy:    seriesAt(metrics["accuracy"], epoch),
				F1:          seriesAt(metrics["f1"], epoch),
				Precision:   seriesAt(metrics["precision"], epoch),
				Recall:      seriesAt(metrics["recall"], epoch),
				BalancePred: seriesAt(metrics["balance_pred"], epoch),
				BalanceTrue: seriesAt(metrics["balance_true"], epoch),
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %v", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write metrics CSV: %v", err)
	}
	return nil
}

func (h *History) checkColumns() error {
	mismatch := len(h.names) != len(csvColumns)
	if !mismatch {
		for i, name := range csvColumns {
			if h.names[i] != name {
				mismatch = true
				break
			}
		}
	}
	if mismatch {
		return fmt.Errorf("metric set %v cannot be saved: CSV columns are fixed to %v", h.names, csvColumns)
	}
	return nil
}

func seriesAt(series []float64, i int) float64 {
	if i < len(series) {
		return series[i]
	}
	return 0
}
