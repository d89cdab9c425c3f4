package training

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHistoryAppendAndRetrieve(t *testing.T) {
	h := NewHistory([]string{"loss", "accuracy"})

	if err := h.Append(SplitTrain, []float64{0.5, 0.8}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := h.Append(SplitTrain, []float64{0.4, 0.85}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := h.Append(SplitTest, []float64{0.6, 0.75}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if got := h.Epochs(SplitTrain); got != 2 {
		t.Errorf("expected 2 train epochs, got %d", got)
	}
	if got := h.Epochs(SplitTest); got != 1 {
		t.Errorf("expected 1 test epoch, got %d", got)
	}

	loss := h.Metric(SplitTrain, "loss")
	if len(loss) != 2 || loss[0] != 0.5 || loss[1] != 0.4 {
		t.Errorf("unexpected train loss series %v", loss)
	}
	acc := h.Metric(SplitTest, "accuracy")
	if len(acc) != 1 || acc[0] != 0.75 {
		t.Errorf("unexpected test accuracy series %v", acc)
	}
}

func TestHistoryAppendValidation(t *testing.T) {
	h := NewHistory([]string{"loss"})

	if err := h.Append("validation", []float64{0.5}); err == nil {
		t.Error("expected error for unknown split")
	}
	if err := h.Append(SplitTrain, []float64{0.5, 0.8}); err == nil {
		t.Error("expected error for misaligned value count")
	}
	if got := h.Epochs("validation"); got != 0 {
		t.Errorf("unknown split should report 0 epochs, got %d", got)
	}
}

func TestHistorySaveCSV(t *testing.T) {
	h := NewHistory([]string{"loss", "accuracy", "f1", "precision", "recall", "balance_pred", "balance_true"})
	for epoch := 0; epoch < 2; epoch++ {
		if err := h.Append(SplitTrain, []float64{0.5, 0.8, 0.7, 0.75, 0.65, 0.5, 0.5}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if err := h.Append(SplitTest, []float64{0.6, 0.7, 0.6, 0.65, 0.55, 0.4, 0.5}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "metrics.csv")
	if err := h.SaveCSV(path); err != nil {
		t.Fatalf("failed to save CSV: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read CSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d lines", len(lines))
	}

	header := lines[0]
	for _, col := range []string{"epoch", "split", "loss", "accuracy", "f1", "precision", "recall", "balance_pred", "balance_true"} {
		if !strings.Contains(header, col) {
			t.Errorf("header missing column %q: %s", col, header)
		}
	}

	var trainRows, testRows int
	for _, line := range lines[1:] {
		switch {
		case strings.Contains(line, SplitTrain):
			trainRows++
		case strings.Contains(line, SplitTest):
			testRows++
		}
	}
	if trainRows != 2 || testRows != 2 {
		t.Errorf("expected 2 rows per split, got train=%d test=%d", trainRows, testRows)
	}
}

func TestHistorySaveCSVRejectsForeignMetricSet(t *testing.T) {
	// The CSV schema is pinned to the classifier metrics; a history over any
	// other metric set must error out instead of dropping columns.
	h := NewHistory([]string{"loss", "perplexity"})
	if err := h.Append(SplitTrain, []float64{0.5, 12.0}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "metrics.csv")
	if err := h.SaveCSV(path); err == nil {
		t.Fatal("expected error for metric set outside the CSV schema")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written for a rejected metric set")
	}
}
