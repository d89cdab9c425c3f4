// Package attack implements input perturbation attacks used to generate
// adversarial samples for discriminator training, together with schedulers
// that adjust attack strength across epochs.
package attack

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/go-advtrain/tensor"
	"github.com/tsawler/go-advtrain/training"
)

// GradientModel is the model surface the sign-gradient attack needs: a
// forward/backward pair that retains the gradient with respect to its input.
type GradientModel interface {
	training.Module
	InputGradient() *tensor.Tensor
}

// StrengthAttack is an attack whose strength can be adjusted between epochs
type StrengthAttack interface {
	training.Attack
	Eps() float64
	SetEps(eps float64)
}

// GaussianNoise perturbs every feature with zero-mean Gaussian noise scaled by
// eps. It needs no model access, which makes it a useful baseline attack.
type GaussianNoise struct {
	eps float64
	rng *rand.Rand
}

// NewGaussianNoise creates a Gaussian noise attack with the given strength.
// The seed drives a dedicated RNG; no process-wide random state is touched.
func NewGaussianNoise(eps float64, seed int64) (*GaussianNoise, error) {
	if eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %f", eps)
	}
	return &GaussianNoise{eps: eps, rng: rand.New(rand.NewSource(seed))}, nil
}

// Eps returns the current attack strength
func (a *GaussianNoise) Eps() float64 {
	return a.eps
}

// SetEps updates the attack strength. Non-positive values are ignored.
func (a *GaussianNoise) SetEps(eps float64) {
	if eps > 0 {
		a.eps = eps
	}
}

// ApplyAttack returns a noisy copy of the loader's feature tensor
func (a *GaussianNoise) ApplyAttack(loader *training.DataLoader) (*tensor.Tensor, error) {
	td, err := tensorDataset(loader)
	if err != nil {
		return nil, err
	}

	perturbed, err := td.Features().Clone()
	if err != nil {
		return nil, err
	}
	data, ok := perturbed.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("attack requires Float32 features, got %s", perturbed.DType)
	}
	for i := range data {
		data[i] += float32(a.rng.NormFloat64() * a.eps)
	}
	return perturbed, nil
}

// SignGradient implements the fast gradient sign method: each feature moves by
// eps in the direction that increases the criterion's loss on the true labels.
type SignGradient struct {
	model     GradientModel
	criterion training.Loss
	eps       float64
}

// NewSignGradient creates a sign-gradient attack against the given model and
// criterion
func NewSignGradient(model GradientModel, criterion training.Loss, eps float64) (*SignGradient, error) {
	if model == nil {
		return nil, fmt.Errorf("model must not be nil")
	}
	if criterion == nil {
		return nil, fmt.Errorf("criterion must not be nil")
	}
	if eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %f", eps)
	}
	return &SignGradient{model: model, criterion: criterion, eps: eps}, nil
}

// Eps returns the current attack strength
func (a *SignGradient) Eps() float64 {
	return a.eps
}

// SetEps updates the attack strength. Non-positive values are ignored.
func (a *SignGradient) SetEps(eps float64) {
	if eps > 0 {
		a.eps = eps
	}
}

// ApplyAttack computes x + eps * sign(dL/dx) over the loader's full feature
// tensor. The model is switched to eval mode for the gradient computation and
// restored afterwards; any parameter gradients it accumulates are cleared by
// the next optimizer ZeroGrad.
func (a *SignGradient) ApplyAttack(loader *training.DataLoader) (*tensor.Tensor, error) {
	td, err := tensorDataset(loader)
	if err != nil {
		return nil, err
	}
	features := td.Features()
	labels := td.Labels()

	wasTraining := a.model.IsTraining()
	a.model.Eval()
	defer func() {
		if wasTraining {
			a.model.Train()
		}
	}()

	pred, err := a.model.Forward(features)
	if err != nil {
		return nil, fmt.Errorf("attack forward pass failed: %v", err)
	}
	gradOut, err := a.criterion.Backward(pred, labels)
	if err != nil {
		return nil, fmt.Errorf("attack loss gradient failed: %v", err)
	}
	if err := a.model.Backward(gradOut); err != nil {
		return nil, fmt.Errorf("attack backward pass failed: %v", err)
	}

	inputGrad := a.model.InputGradient()
	if inputGrad == nil {
		return nil, fmt.Errorf("model did not retain an input gradient")
	}

	direction, err := tensor.Sign(inputGrad)
	if err != nil {
		return nil, err
	}
	step, err := tensor.Scale(direction, a.eps)
	if err != nil {
		return nil, err
	}
	return tensor.Add(features, step)
}

func tensorDataset(loader *training.DataLoader) (*training.TensorDataset, error) {
	td, ok := loader.Dataset().(*training.TensorDataset)
	if !ok {
		return nil, fmt.Errorf("attack requires a TensorDataset, got %T", loader.Dataset())
	}
	return td, nil
}
