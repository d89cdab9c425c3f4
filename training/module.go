package training

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tsawler/go-advtrain/tensor"
)

// Module defines the interface the training loop requires from a model.
// Forward must cache whatever Backward needs; Backward accumulates parameter
// gradients for the most recent Forward call.
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Backward(gradOutput *tensor.Tensor) error
	Parameters() []*tensor.Tensor
	Train()
	Eval()
	IsTraining() bool
}

// EmbeddingPretrainer is implemented by models with a self-supervised
// pretraining phase. When SelfSupervised reports true the trainer runs
// TrainEmbedding once on the full training feature tensor before the epoch
// loop.
type EmbeddingPretrainer interface {
	SelfSupervised() bool
	TrainEmbedding(features *tensor.Tensor, verbose bool) error
}

// LinearClassifier is a single linear layer followed by a sigmoid (one output)
// or softmax (multiple outputs), with analytic backprop. It flattens any
// trailing input dimensions, so sequence inputs of shape [batch, steps] work
// directly.
type LinearClassifier struct {
	weight     *tensor.Tensor // [features, classes]
	bias       *tensor.Tensor // [classes]
	inFeatures int
	numOutputs int
	training   bool

	lastInput  *tensor.Tensor // flattened [batch, features]
	lastOutput *tensor.Tensor // probabilities [batch, outputs]
	inputShape []int          // original input shape for gradient reshaping
	inputGrad  *tensor.Tensor
}

// NewLinearClassifier creates a classifier with Xavier-initialized weights.
// numOutputs of 1 yields sigmoid probabilities for binary classification;
// larger values yield a softmax over that many classes. The seed drives a
// dedicated RNG; no process-wide random state is touched.
func NewLinearClassifier(inFeatures, numOutputs int, seed int64) (*LinearClassifier, error) {
	if inFeatures <= 0 {
		return nil, fmt.Errorf("input feature count must be positive, got %d", inFeatures)
	}
	if numOutputs <= 0 {
		return nil, fmt.Errorf("output count must be positive, got %d", numOutputs)
	}

	rng := rand.New(rand.NewSource(seed))
	bound := math.Sqrt(6.0 / float64(inFeatures+numOutputs))

	weightData := make([]float32, inFeatures*numOutputs)
	for i := range weightData {
		weightData[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{inFeatures, numOutputs}, tensor.Float32, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{numOutputs}, tensor.Float32)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &LinearClassifier{
		weight:     weight,
		bias:       bias,
		inFeatures: inFeatures,
		numOutputs: numOutputs,
		training:   true,
	}, nil
}

// Forward computes class probabilities for a batch
func (m *LinearClassifier) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if input.DType != tensor.Float32 {
		return nil, fmt.Errorf("classifier input must be Float32, got %s", input.DType)
	}

	batch := input.Shape[0]
	if input.NumElems != batch*m.inFeatures {
		return nil, fmt.Errorf("input has %d features per sample, expected %d",
			input.NumElems/batch, m.inFeatures)
	}

	flat, err := input.Reshape([]int{batch, m.inFeatures})
	if err != nil {
		return nil, err
	}

	logits, err := tensor.MatMul(flat, m.weight)
	if err != nil {
		return nil, fmt.Errorf("linear forward failed: %v", err)
	}

	logitData := logits.Data.([]float32)
	biasData := m.bias.Data.([]float32)
	for i := 0; i < batch; i++ {
		for j := 0; j < m.numOutputs; j++ {
			logitData[i*m.numOutputs+j] += biasData[j]
		}
	}

	if m.numOutputs == 1 {
		for i, z := range logitData {
			logitData[i] = float32(1.0 / (1.0 + math.Exp(-float64(z))))
		}
	} else {
		softmaxRows(logitData, batch, m.numOutputs)
	}

	m.lastInput = flat
	m.lastOutput = logits
	m.inputShape = append([]int(nil), input.Shape...)
	m.inputGrad = nil
	return logits, nil
}

func softmaxRows(data []float32, rows, cols int) {
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxVal))
			row[j] = float32(e)
			sum += e
		}
		for j := range row {
			row[j] = float32(float64(row[j]) / sum)
		}
	}
}

// Backward accumulates weight and bias gradients for the most recent Forward
// call, folding the sigmoid/softmax derivative into the incoming gradient.
// The gradient with respect to the input is retained for attack use.
func (m *LinearClassifier) Backward(gradOutput *tensor.Tensor) error {
	if m.lastInput == nil || m.lastOutput == nil {
		return fmt.Errorf("backward called before forward")
	}
	if !tensor.ShapeEqual(gradOutput.Shape, m.lastOutput.Shape) {
		return fmt.Errorf("gradient shape %v does not match output shape %v",
			gradOutput.Shape, m.lastOutput.Shape)
	}

	batch := m.lastInput.Shape[0]
	p := m.lastOutput.Data.([]float32)
	g := gradOutput.Data.([]float32)

	// dz carries the gradient with respect to the pre-activation logits
	dz := make([]float32, len(p))
	if m.numOutputs == 1 {
		for i := range p {
			dz[i] = g[i] * p[i] * (1 - p[i])
		}
	} else {
		for i := 0; i < batch; i++ {
			base := i * m.numOutputs
			var dot float64
			for j := 0; j < m.numOutputs; j++ {
				dot += float64(g[base+j]) * float64(p[base+j])
			}
			for j := 0; j < m.numOutputs; j++ {
				dz[base+j] = p[base+j] * (g[base+j] - float32(dot))
			}
		}
	}

	dzT, err := tensor.NewTensor([]int{batch, m.numOutputs}, tensor.Float32, dz)
	if err != nil {
		return err
	}

	inputT, err := tensor.Transpose(m.lastInput)
	if err != nil {
		return err
	}
	gradW, err := tensor.MatMul(inputT, dzT)
	if err != nil {
		return fmt.Errorf("weight gradient failed: %v", err)
	}
	if err := m.weight.AccumulateGrad(gradW); err != nil {
		return err
	}

	gradB := make([]float32, m.numOutputs)
	for i := 0; i < batch; i++ {
		for j := 0; j < m.numOutputs; j++ {
			gradB[j] += dz[i*m.numOutputs+j]
		}
	}
	gradBT, err := tensor.NewTensor([]int{m.numOutputs}, tensor.Float32, gradB)
	if err != nil {
		return err
	}
	if err := m.bias.AccumulateGrad(gradBT); err != nil {
		return err
	}

	weightT, err := tensor.Transpose(m.weight)
	if err != nil {
		return err
	}
	dx, err := tensor.MatMul(dzT, weightT)
	if err != nil {
		return fmt.Errorf("input gradient failed: %v", err)
	}
	m.inputGrad, err = dx.Reshape(m.inputShape)
	if err != nil {
		return err
	}
	return nil
}

// InputGradient returns the gradient with respect to the input from the most
// recent Backward call, shaped like the original input. Returns nil if
// Backward has not run since the last Forward.
func (m *LinearClassifier) InputGradient() *tensor.Tensor {
	return m.inputGrad
}

// Parameters returns the trainable parameters
func (m *LinearClassifier) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{m.weight, m.bias}
}

// Train sets the module to training mode
func (m *LinearClassifier) Train() {
	m.training = true
}

// Eval sets the module to evaluation mode
func (m *LinearClassifier) Eval() {
	m.training = false
}

// IsTraining returns true if in training mode
func (m *LinearClassifier) IsTraining() bool {
	return m.training
}
