// Package checkpoints persists model weights, optimizer settings and training
// metadata as JSON snapshots.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tsawler/go-advtrain/tensor"
	"github.com/tsawler/go-advtrain/training"
)

// Checkpoint represents a complete model state including weights, optimizer
// settings and training metadata
type Checkpoint struct {
	Weights []WeightTensor `json:"weights"`

	// Training state
	TrainingState TrainingState `json:"training_state"`

	// Optimizer settings (if available)
	OptimizerState *OptimizerState `json:"optimizer_state,omitempty"`

	// Metadata
	Metadata Metadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// TrainingState captures the training progress at save time
type TrainingState struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BestLoss     float64 `json:"best_loss"`
	Multiclass   bool    `json:"multiclass"`
}

// OptimizerState captures optimizer-specific settings
type OptimizerState struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Metadata contains checkpoint metadata. RunID ties the snapshot to the
// experiment directory it was produced in.
type Metadata struct {
	RunID       string    `json:"run_id"`
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Capture extracts a snapshot of the model's parameter tensors
func Capture(model training.Module) ([]WeightTensor, error) {
	params := model.Parameters()
	weights := make([]WeightTensor, 0, len(params))

	for i, param := range params {
		data, ok := param.Data.([]float32)
		if !ok {
			return nil, fmt.Errorf("parameter %d is not a Float32 tensor", i)
		}
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("param_%d", i),
			Shape: append([]int(nil), param.Shape...),
			Data:  append([]float32(nil), data...),
		})
	}
	return weights, nil
}

// Restore copies saved weights back into the model's parameter tensors. The
// snapshot must have been captured from a model of the same architecture;
// counts and shapes are verified before any data is written.
func Restore(model training.Module, weights []WeightTensor) error {
	params := model.Parameters()
	if len(weights) != len(params) {
		return fmt.Errorf("weight count mismatch: %d weights, %d parameters", len(weights), len(params))
	}

	for i, param := range params {
		if !tensor.ShapeEqual(param.Shape, weights[i].Shape) {
			return fmt.Errorf("shape mismatch for %s: parameter %v vs weight %v",
				weights[i].Name, param.Shape, weights[i].Shape)
		}
	}

	for i, param := range params {
		copy(param.Data.([]float32), weights[i].Data)
	}
	return nil
}

// Save writes the checkpoint as pretty-printed JSON. Absent metadata fields
// are filled in, including a fresh run ID.
func Save(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "go-advtrain"
		checkpoint.Metadata.Version = "1.0.0"
	}
	if checkpoint.Metadata.RunID == "" {
		checkpoint.Metadata.RunID = uuid.NewString()
	}
	if checkpoint.Metadata.CreatedAt.IsZero() {
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ") // Pretty print JSON

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

// Load reads a checkpoint written by Save
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	decoder := json.NewDecoder(file)

	if err := decoder.Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &checkpoint, nil
}
