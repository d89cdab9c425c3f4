package checkpoints

import (
	"path/filepath"
	"testing"

	"github.com/tsawler/go-advtrain/training"
)

func TestCaptureRestoreRoundTrip(t *testing.T) {
	source, err := training.NewLinearClassifier(4, 2, 1)
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	weights, err := Capture(source)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if len(weights) != 2 {
		t.Fatalf("expected weight and bias snapshots, got %d", len(weights))
	}

	// A differently-seeded model starts with different weights; restoring
	// the snapshot must make it match the source exactly.
	target, err := training.NewLinearClassifier(4, 2, 99)
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	if err := Restore(target, weights); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	srcParams := source.Parameters()
	dstParams := target.Parameters()
	for i := range srcParams {
		src := srcParams[i].Data.([]float32)
		dst := dstParams[i].Data.([]float32)
		for j := range src {
			if src[j] != dst[j] {
				t.Fatalf("parameter %d element %d: expected %f, got %f", i, j, src[j], dst[j])
			}
		}
	}
}

func TestRestoreRejectsMismatchedArchitecture(t *testing.T) {
	source, _ := training.NewLinearClassifier(4, 2, 1)
	weights, err := Capture(source)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	other, _ := training.NewLinearClassifier(8, 2, 1)
	if err := Restore(other, weights); err == nil {
		t.Error("expected shape mismatch error")
	}

	if err := Restore(other, weights[:1]); err == nil {
		t.Error("expected weight count mismatch error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	model, _ := training.NewLinearClassifier(3, 1, 7)
	weights, err := Capture(model)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	checkpoint := &Checkpoint{
		Weights: weights,
		TrainingState: TrainingState{
			Epochs:       12,
			LearningRate: 0.001,
			BestLoss:     0.37,
		},
		OptimizerState: &OptimizerState{
			Type:       "Adam",
			Parameters: map[string]interface{}{"beta1": 0.9},
		},
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := Save(checkpoint, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if checkpoint.Metadata.RunID == "" {
		t.Error("save must stamp a run ID")
	}
	if checkpoint.Metadata.Framework != "go-advtrain" {
		t.Errorf("unexpected framework %q", checkpoint.Metadata.Framework)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.TrainingState.Epochs != 12 || loaded.TrainingState.BestLoss != 0.37 {
		t.Errorf("training state did not round-trip: %+v", loaded.TrainingState)
	}
	if loaded.Metadata.RunID != checkpoint.Metadata.RunID {
		t.Errorf("run ID did not round-trip")
	}
	if loaded.OptimizerState == nil || loaded.OptimizerState.Type != "Adam" {
		t.Errorf("optimizer state did not round-trip: %+v", loaded.OptimizerState)
	}

	restored, _ := training.NewLinearClassifier(3, 1, 42)
	if err := Restore(restored, loaded.Weights); err != nil {
		t.Fatalf("restore from loaded checkpoint failed: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing checkpoint file")
	}
}
