package training

import (
	"math"
	"testing"

	"github.com/tsawler/go-advtrain/tensor"
)

func paramWithGrad(t *testing.T, values, grads []float32) *tensor.Tensor {
	t.Helper()

	param, err := tensor.NewTensor([]int{len(values)}, tensor.Float32, values)
	if err != nil {
		t.Fatalf("failed to create parameter: %v", err)
	}
	param.SetRequiresGrad(true)

	g, err := tensor.NewTensor([]int{len(grads)}, tensor.Float32, grads)
	if err != nil {
		t.Fatalf("failed to create gradient: %v", err)
	}
	if err := param.AccumulateGrad(g); err != nil {
		t.Fatalf("failed to set gradient: %v", err)
	}
	return param
}

func TestSGDVanillaStep(t *testing.T) {
	param := paramWithGrad(t, []float32{1, 2}, []float32{0.5, -0.5})

	sgd, err := NewSGD([]*tensor.Tensor{param}, 0.1, 0, 0, false)
	if err != nil {
		t.Fatalf("failed to create SGD: %v", err)
	}
	if err := sgd.Step(); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	data := param.Data.([]float32)
	if math.Abs(float64(data[0])-0.95) > 1e-6 || math.Abs(float64(data[1])-2.05) > 1e-6 {
		t.Errorf("expected [0.95 2.05], got %v", data)
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	param := paramWithGrad(t, []float32{0}, []float32{1})

	sgd, _ := NewSGD([]*tensor.Tensor{param}, 0.1, 0.9, 0, false)
	if err := sgd.Step(); err != nil {
		t.Fatalf("first step failed: %v", err)
	}
	// v1 = 1, w = -0.1
	if err := sgd.Step(); err != nil {
		t.Fatalf("second step failed: %v", err)
	}
	// v2 = 0.9 + 1 = 1.9, w = -0.1 - 0.19 = -0.29

	got := float64(param.Data.([]float32)[0])
	if math.Abs(got+0.29) > 1e-6 {
		t.Errorf("expected -0.29 after two momentum steps, got %f", got)
	}
}

func TestSGDSkipsParamsWithoutGrad(t *testing.T) {
	param, _ := tensor.NewTensor([]int{2}, tensor.Float32, []float32{1, 1})
	param.SetRequiresGrad(true)

	sgd, _ := NewSGD([]*tensor.Tensor{param}, 0.1, 0, 0, false)
	if err := sgd.Step(); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	data := param.Data.([]float32)
	if data[0] != 1 || data[1] != 1 {
		t.Errorf("parameters without gradients must not move, got %v", data)
	}
}

func TestSGDValidation(t *testing.T) {
	if _, err := NewSGD(nil, 0, 0, 0, false); err == nil {
		t.Error("expected error for non-positive learning rate")
	}
	if _, err := NewSGD(nil, 0.1, 0, 0, true); err == nil {
		t.Error("expected error for nesterov without momentum")
	}
}

func TestAdamFirstStep(t *testing.T) {
	param := paramWithGrad(t, []float32{1}, []float32{0.5})

	adam, err := NewAdam([]*tensor.Tensor{param}, 0.001, 0.9, 0.999, 1e-8, 0)
	if err != nil {
		t.Fatalf("failed to create Adam: %v", err)
	}
	if err := adam.Step(); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	// With bias correction the first step moves by ~lr regardless of the
	// gradient magnitude.
	got := float64(param.Data.([]float32)[0])
	if math.Abs(got-(1-0.001)) > 1e-6 {
		t.Errorf("expected first Adam step of ~lr, got %f", 1-got)
	}
}

func TestAdamValidation(t *testing.T) {
	tests := []struct {
		name                   string
		lr, b1, b2, eps, decay float64
	}{
		{"bad lr", 0, 0.9, 0.999, 1e-8, 0},
		{"bad beta1", 0.01, 1.5, 0.999, 1e-8, 0},
		{"bad beta2", 0.01, 0.9, 0, 1e-8, 0},
		{"bad epsilon", 0.01, 0.9, 0.999, 0, 0},
	}
	for _, tt := range tests {
		if _, err := NewAdam(nil, tt.lr, tt.b1, tt.b2, tt.eps, tt.decay); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestZeroGradClearsAllParameters(t *testing.T) {
	a := paramWithGrad(t, []float32{1}, []float32{1})
	b := paramWithGrad(t, []float32{1}, []float32{1})

	sgd, _ := NewSGD([]*tensor.Tensor{a, b}, 0.1, 0, 0, false)
	sgd.ZeroGrad()

	for i, p := range []*tensor.Tensor{a, b} {
		if g := p.Grad().Data.([]float32)[0]; g != 0 {
			t.Errorf("param %d: expected zeroed gradient, got %f", i, g)
		}
	}
}
