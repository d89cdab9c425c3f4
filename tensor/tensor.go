package tensor

import (
	"fmt"
)

// DType represents the data type of tensor elements
type DType int

const (
	Float32 DType = iota
	Int32
)

func (dt DType) String() string {
	switch dt {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(dt))
	}
}

// Size returns the size of the data type in bytes
func (dt DType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	default:
		return 0
	}
}

// Tensor is a CPU-resident n-dimensional array with an optional gradient.
// Data is a flat slice ([]float32 or []int32) in row-major order.
type Tensor struct {
	Shape    []int
	DType    DType
	Data     interface{}
	NumElems int

	requiresGrad bool
	grad         *Tensor
}

// NewTensor creates a tensor from existing data. The data slice length must
// match the product of the shape dimensions.
func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	numElems, err := validateShape(shape)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		d, ok := data.([]float32)
		if !ok {
			return nil, fmt.Errorf("expected []float32 data for Float32 tensor, got %T", data)
		}
		if len(d) != numElems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, numElems)
		}
	case Int32:
		d, ok := data.([]int32)
		if !ok {
			return nil, fmt.Errorf("expected []int32 data for Int32 tensor, got %T", data)
		}
		if len(d) != numElems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, numElems)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		DType:    dtype,
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Zeros creates a zero-filled tensor
func Zeros(shape []int, dtype DType) (*Tensor, error) {
	numElems, err := validateShape(shape)
	if err != nil {
		return nil, err
	}

	var data interface{}
	switch dtype {
	case Float32:
		data = make([]float32, numElems)
	case Int32:
		data = make([]int32, numElems)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		DType:    dtype,
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Full creates a tensor with every element set to value
func Full(shape []int, dtype DType, value float64) (*Tensor, error) {
	t, err := Zeros(shape, dtype)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		data := t.Data.([]float32)
		for i := range data {
			data[i] = float32(value)
		}
	case Int32:
		data := t.Data.([]int32)
		for i := range data {
			data[i] = int32(value)
		}
	}

	return t, nil
}

func validateShape(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("shape must have at least one dimension")
	}

	numElems := 1
	for i, dim := range shape {
		if dim <= 0 {
			return 0, fmt.Errorf("shape dimension %d must be positive, got %d", i, dim)
		}
		numElems *= dim
	}
	return numElems, nil
}

// Clone returns a deep copy of the tensor. Gradient state is not copied.
func (t *Tensor) Clone() (*Tensor, error) {
	switch t.DType {
	case Float32:
		data := make([]float32, t.NumElems)
		copy(data, t.Data.([]float32))
		return NewTensor(t.Shape, t.DType, data)
	case Int32:
		data := make([]int32, t.NumElems)
		copy(data, t.Data.([]int32))
		return NewTensor(t.Shape, t.DType, data)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

// Reshape returns a view-like tensor with a new shape over the same data
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	numElems, err := validateShape(shape)
	if err != nil {
		return nil, err
	}
	if numElems != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v (%d elements)", t.Shape, t.NumElems, shape, numElems)
	}

	reshaped := *t
	reshaped.Shape = append([]int(nil), shape...)
	return &reshaped, nil
}

// SetData replaces the tensor's data in place. The replacement must have the
// same type and length as the current data.
func (t *Tensor) SetData(data interface{}) error {
	switch t.DType {
	case Float32:
		d, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("expected []float32 data, got %T", data)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
		}
		copy(t.Data.([]float32), d)
	case Int32:
		d, ok := data.([]int32)
		if !ok {
			return fmt.Errorf("expected []int32 data, got %T", data)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
		}
		copy(t.Data.([]int32), d)
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

// SetRequiresGrad marks the tensor as a trainable parameter
func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
	if !requires {
		t.grad = nil
	}
}

// RequiresGrad reports whether the tensor accumulates gradients
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// Grad returns the accumulated gradient, or nil if none has been recorded
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// ZeroGrad clears the accumulated gradient
func (t *Tensor) ZeroGrad() {
	if t.grad == nil {
		return
	}
	data := t.grad.Data.([]float32)
	for i := range data {
		data[i] = 0
	}
}

// AccumulateGrad adds g into the tensor's gradient, allocating it on first use.
// Only Float32 parameters carry gradients.
func (t *Tensor) AccumulateGrad(g *Tensor) error {
	if t.DType != Float32 {
		return fmt.Errorf("gradients are only supported for Float32 tensors, got %s", t.DType)
	}
	if g.DType != Float32 {
		return fmt.Errorf("gradient must be Float32, got %s", g.DType)
	}
	if !ShapeEqual(t.Shape, g.Shape) {
		return fmt.Errorf("gradient shape %v does not match tensor shape %v", g.Shape, t.Shape)
	}

	if t.grad == nil {
		grad, err := Zeros(t.Shape, Float32)
		if err != nil {
			return err
		}
		t.grad = grad
	}

	dst := t.grad.Data.([]float32)
	src := g.Data.([]float32)
	for i := range dst {
		dst[i] += src[i]
	}
	return nil
}

// ShapeEqual reports whether two shapes are identical
func ShapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Float64s returns the tensor contents widened to a float64 slice
func (t *Tensor) Float64s() []float64 {
	out := make([]float64, t.NumElems)
	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		for i, v := range data {
			out[i] = float64(v)
		}
	case Int32:
		data := t.Data.([]int32)
		for i, v := range data {
			out[i] = float64(v)
		}
	}
	return out
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s)", t.Shape, t.DType)
}
