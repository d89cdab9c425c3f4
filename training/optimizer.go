package training

import (
	"fmt"
	"math"

	"github.com/tsawler/go-advtrain/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// SGD implements stochastic gradient descent with optional momentum, weight
// decay and Nesterov acceleration
type SGD struct {
	parameters   []*tensor.Tensor
	learningRate float64
	momentum     float64
	weightDecay  float64
	nesterov     bool
	velocities   [][]float32
}

// NewSGD creates a new SGD optimizer
func NewSGD(parameters []*tensor.Tensor, lr, momentum, weightDecay float64, nesterov bool) (*SGD, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", lr)
	}
	if nesterov && momentum <= 0 {
		return nil, fmt.Errorf("nesterov momentum requires a positive momentum factor")
	}

	sgd := &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
		nesterov:     nesterov,
		velocities:   make([][]float32, len(parameters)),
	}
	if momentum > 0 {
		for i, p := range parameters {
			sgd.velocities[i] = make([]float32, p.NumElems)
		}
	}
	return sgd, nil
}

// Step performs a single optimization step
func (sgd *SGD) Step() error {
	for i, param := range sgd.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		weights := param.Data.([]float32)
		grads := param.Grad().Data.([]float32)

		for j := range weights {
			g := float64(grads[j])
			if sgd.weightDecay > 0 {
				g += sgd.weightDecay * float64(weights[j])
			}

			if sgd.momentum > 0 {
				v := sgd.momentum*float64(sgd.velocities[i][j]) + g
				sgd.velocities[i][j] = float32(v)
				if sgd.nesterov {
					g += sgd.momentum * v
				} else {
					g = v
				}
			}

			weights[j] -= float32(sgd.learningRate * g)
		}
	}
	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (sgd *SGD) ZeroGrad() {
	for _, param := range sgd.parameters {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate
func (sgd *SGD) GetLR() float64 {
	return sgd.learningRate
}

// SetLR sets the learning rate
func (sgd *SGD) SetLR(lr float64) {
	sgd.learningRate = lr
}

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates
type Adam struct {
	parameters   []*tensor.Tensor
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	weightDecay  float64
	step         int
	m            [][]float32
	v            [][]float32
}

// NewAdam creates a new Adam optimizer
func NewAdam(parameters []*tensor.Tensor, lr, beta1, beta2, epsilon, weightDecay float64) (*Adam, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", lr)
	}
	if beta1 <= 0 || beta1 >= 1 {
		return nil, fmt.Errorf("beta1 must be in (0, 1), got %f", beta1)
	}
	if beta2 <= 0 || beta2 >= 1 {
		return nil, fmt.Errorf("beta2 must be in (0, 1), got %f", beta2)
	}
	if epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %f", epsilon)
	}

	adam := &Adam{
		parameters:   parameters,
		learningRate: lr,
		beta1:        beta1,
		beta2:        beta2,
		epsilon:      epsilon,
		weightDecay:  weightDecay,
		m:            make([][]float32, len(parameters)),
		v:            make([][]float32, len(parameters)),
	}
	for i, p := range parameters {
		adam.m[i] = make([]float32, p.NumElems)
		adam.v[i] = make([]float32, p.NumElems)
	}
	return adam, nil
}

// Step performs a single optimization step
func (a *Adam) Step() error {
	a.step++
	bc1 := 1 - math.Pow(a.beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, param := range a.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		weights := param.Data.([]float32)
		grads := param.Grad().Data.([]float32)

		for j := range weights {
			g := float64(grads[j])
			if a.weightDecay > 0 {
				g += a.weightDecay * float64(weights[j])
			}

			m := a.beta1*float64(a.m[i][j]) + (1-a.beta1)*g
			v := a.beta2*float64(a.v[i][j]) + (1-a.beta2)*g*g
			a.m[i][j] = float32(m)
			a.v[i][j] = float32(v)

			mHat := m / bc1
			vHat := v / bc2
			weights[j] -= float32(a.learningRate * mHat / (math.Sqrt(vHat) + a.epsilon))
		}
	}
	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (a *Adam) ZeroGrad() {
	for _, param := range a.parameters {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate
func (a *Adam) GetLR() float64 {
	return a.learningRate
}

// SetLR sets the learning rate
func (a *Adam) SetLR(lr float64) {
	a.learningRate = lr
}
