package training

import (
	"fmt"
	"math"

	"github.com/tsawler/go-advtrain/tensor"
)

// Loss defines the interface all loss functions must implement. Forward
// returns the scalar batch loss; Backward returns the gradient of the loss
// with respect to the model output.
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (float64, error)
	Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
}

const probEps = 1e-7

// BCELoss implements binary cross-entropy over sigmoid probabilities.
// Predictions are [batch, 1] probabilities; targets are [batch, 1] labels in
// {0, 1} (Float32 or Int32).
type BCELoss struct{}

// NewBCELoss creates a binary cross-entropy loss
func NewBCELoss() *BCELoss {
	return &BCELoss{}
}

// Forward computes -mean(y*log(p) + (1-y)*log(1-p))
func (l *BCELoss) Forward(predicted, target *tensor.Tensor) (float64, error) {
	p, y, err := bceOperands(predicted, target)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := range p {
		pi := clampProb(float64(p[i]))
		sum += y[i]*math.Log(pi) + (1-y[i])*math.Log(1-pi)
	}
	return -sum / float64(len(p)), nil
}

// Backward computes dL/dp = (p - y) / (p * (1 - p)) / batch
func (l *BCELoss) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	p, y, err := bceOperands(predicted, target)
	if err != nil {
		return nil, err
	}

	grad := make([]float32, len(p))
	n := float64(len(p))
	for i := range p {
		pi := clampProb(float64(p[i]))
		grad[i] = float32((pi - y[i]) / (pi * (1 - pi)) / n)
	}
	return tensor.NewTensor(predicted.Shape, tensor.Float32, grad)
}

func bceOperands(predicted, target *tensor.Tensor) ([]float32, []float64, error) {
	if predicted.DType != tensor.Float32 {
		return nil, nil, fmt.Errorf("BCE predictions must be Float32, got %s", predicted.DType)
	}
	if predicted.NumElems != target.NumElems {
		return nil, nil, fmt.Errorf("BCE prediction/target element count mismatch: %d vs %d",
			predicted.NumElems, target.NumElems)
	}
	return predicted.Data.([]float32), target.Float64s(), nil
}

func clampProb(p float64) float64 {
	if p < probEps {
		return probEps
	}
	if p > 1-probEps {
		return 1 - probEps
	}
	return p
}

// CrossEntropyLoss implements negative log likelihood over softmax
// probabilities. Predictions are [batch, classes] probabilities; targets are
// [batch] or [batch, 1] class indices.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a categorical cross-entropy loss
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Forward computes -mean(log(p[target]))
func (l *CrossEntropyLoss) Forward(predicted, target *tensor.Tensor) (float64, error) {
	p, classes, numClasses, err := ceOperands(predicted, target)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i, c := range classes {
		sum += math.Log(clampProb(float64(p[i*numClasses+c])))
	}
	return -sum / float64(len(classes)), nil
}

// Backward computes dL/dp: -1/(batch * p[target]) at the true class, 0 elsewhere
func (l *CrossEntropyLoss) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	p, classes, numClasses, err := ceOperands(predicted, target)
	if err != nil {
		return nil, err
	}

	grad := make([]float32, len(p))
	n := float64(len(classes))
	for i, c := range classes {
		pi := clampProb(float64(p[i*numClasses+c]))
		grad[i*numClasses+c] = float32(-1 / (n * pi))
	}
	return tensor.NewTensor(predicted.Shape, tensor.Float32, grad)
}

func ceOperands(predicted, target *tensor.Tensor) ([]float32, []int, int, error) {
	if predicted.DType != tensor.Float32 {
		return nil, nil, 0, fmt.Errorf("cross-entropy predictions must be Float32, got %s", predicted.DType)
	}
	if len(predicted.Shape) != 2 {
		return nil, nil, 0, fmt.Errorf("cross-entropy predictions must be 2D, got %v", predicted.Shape)
	}

	batch, numClasses := predicted.Shape[0], predicted.Shape[1]
	if target.NumElems != batch {
		return nil, nil, 0, fmt.Errorf("cross-entropy target count mismatch: expected %d, got %d",
			batch, target.NumElems)
	}

	classes := make([]int, batch)
	for i, v := range target.Float64s() {
		c := int(v)
		if c < 0 || c >= numClasses {
			return nil, nil, 0, fmt.Errorf("target class %d out of range [0, %d)", c, numClasses)
		}
		classes[i] = c
	}
	return predicted.Data.([]float32), classes, numClasses, nil
}
