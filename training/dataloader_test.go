package training

import (
	"testing"

	"github.com/tsawler/go-advtrain/tensor"
)

func makeDataset(t *testing.T, samples, features int) *TensorDataset {
	t.Helper()

	x := make([]float32, samples*features)
	y := make([]float32, samples)
	for i := range x {
		x[i] = float32(i)
	}
	for i := range y {
		y[i] = float32(i % 2)
	}

	xt, err := tensor.NewTensor([]int{samples, features}, tensor.Float32, x)
	if err != nil {
		t.Fatalf("failed to create features: %v", err)
	}
	yt, err := tensor.NewTensor([]int{samples, 1}, tensor.Float32, y)
	if err != nil {
		t.Fatalf("failed to create labels: %v", err)
	}

	ds, err := NewTensorDataset(xt, yt)
	if err != nil {
		t.Fatalf("failed to create dataset: %v", err)
	}
	return ds
}

func TestTensorDatasetSampleCountMismatch(t *testing.T) {
	x, _ := tensor.Zeros([]int{4, 2}, tensor.Float32)
	y, _ := tensor.Zeros([]int{3, 1}, tensor.Float32)

	if _, err := NewTensorDataset(x, y); err == nil {
		t.Error("expected sample count mismatch error")
	}
}

func TestDataLoaderBatchCount(t *testing.T) {
	tests := []struct {
		samples   int
		batchSize int
		batches   int
		lastBatch int
	}{
		{10, 4, 3, 2},
		{8, 4, 2, 4},
		{3, 8, 1, 3},
	}

	for _, tt := range tests {
		ds := makeDataset(t, tt.samples, 2)
		dl, err := NewDataLoader(ds, tt.batchSize, false, 0)
		if err != nil {
			t.Fatalf("failed to create loader: %v", err)
		}

		if dl.Len() != tt.batches {
			t.Errorf("%d samples / batch %d: expected %d batches, got %d",
				tt.samples, tt.batchSize, tt.batches, dl.Len())
		}

		dl.Reset()
		var got []*Batch
		for {
			batch, err := dl.Next()
			if err != nil {
				t.Fatalf("next failed: %v", err)
			}
			if batch == nil {
				break
			}
			got = append(got, batch)
		}

		if len(got) != tt.batches {
			t.Errorf("expected %d batches from iteration, got %d", tt.batches, len(got))
		}
		if last := got[len(got)-1]; last.Data.Shape[0] != tt.lastBatch {
			t.Errorf("expected last batch of %d samples, got %d", tt.lastBatch, last.Data.Shape[0])
		}
	}
}

func TestDataLoaderShuffleIsSeeded(t *testing.T) {
	ds := makeDataset(t, 32, 2)

	order := func(seed int64) []float32 {
		dl, err := NewDataLoader(ds, 1, true, seed)
		if err != nil {
			t.Fatalf("failed to create loader: %v", err)
		}
		dl.Reset()
		var firsts []float32
		for {
			batch, err := dl.Next()
			if err != nil {
				t.Fatalf("next failed: %v", err)
			}
			if batch == nil {
				break
			}
			firsts = append(firsts, batch.Data.Data.([]float32)[0])
		}
		return firsts
	}

	a := order(7)
	b := order(7)
	c := order(8)

	sameAB, sameAC := true, true
	for i := range a {
		if a[i] != b[i] {
			sameAB = false
		}
		if a[i] != c[i] {
			sameAC = false
		}
	}

	if !sameAB {
		t.Error("same seed must produce the same shuffle order")
	}
	if sameAC {
		t.Error("different seeds should produce different shuffle orders")
	}
}

func TestDataLoaderRejectsBadBatchSize(t *testing.T) {
	ds := makeDataset(t, 4, 2)
	if _, err := NewDataLoader(ds, 0, false, 0); err == nil {
		t.Error("expected error for non-positive batch size")
	}
}
