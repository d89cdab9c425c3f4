package tensor

import (
	"fmt"
	"math"
)

// Add performs element-wise addition of two tensors with identical shapes
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, "add", func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction a - b
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, "sub", func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, "mul", func(x, y float32) float32 { return x * y })
}

func elementwise(a, b *Tensor, op string, f func(x, y float32) float32) (*Tensor, error) {
	if a.DType != Float32 || b.DType != Float32 {
		return nil, fmt.Errorf("%s requires Float32 tensors, got %s and %s", op, a.DType, b.DType)
	}
	if !ShapeEqual(a.Shape, b.Shape) {
		return nil, fmt.Errorf("%s shape mismatch: %v vs %v", op, a.Shape, b.Shape)
	}

	out, err := Zeros(a.Shape, Float32)
	if err != nil {
		return nil, err
	}

	aData := a.Data.([]float32)
	bData := b.Data.([]float32)
	outData := out.Data.([]float32)
	for i := range outData {
		outData[i] = f(aData[i], bData[i])
	}
	return out, nil
}

// Scale multiplies every element by a scalar
func Scale(t *Tensor, s float64) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("scale requires a Float32 tensor, got %s", t.DType)
	}

	out, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	outData := out.Data.([]float32)
	for i := range outData {
		outData[i] = data[i] * float32(s)
	}
	return out, nil
}

// MatMul computes the matrix product of two 2D Float32 tensors: [m,k]x[k,n] -> [m,n]
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.DType != Float32 || b.DType != Float32 {
		return nil, fmt.Errorf("matmul requires Float32 tensors, got %s and %s", a.DType, b.DType)
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires 2D tensors, got %v and %v", a.Shape, b.Shape)
	}
	if a.Shape[1] != b.Shape[0] {
		return nil, fmt.Errorf("matmul inner dimension mismatch: %v x %v", a.Shape, b.Shape)
	}

	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	out, err := Zeros([]int{m, n}, Float32)
	if err != nil {
		return nil, err
	}

	aData := a.Data.([]float32)
	bData := b.Data.([]float32)
	outData := out.Data.([]float32)

	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := aData[i*k+p]
			if av == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				outData[i*n+j] += av * bData[p*n+j]
			}
		}
	}
	return out, nil
}

// Transpose returns the transpose of a 2D Float32 tensor
func Transpose(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("transpose requires a Float32 tensor, got %s", t.DType)
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a 2D tensor, got %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	out, err := Zeros([]int{cols, rows}, Float32)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	outData := out.Data.([]float32)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			outData[j*rows+i] = data[i*cols+j]
		}
	}
	return out, nil
}

// Concat concatenates two tensors along the first (batch) dimension. The
// trailing dimensions and dtypes must match exactly.
func Concat(a, b *Tensor) (*Tensor, error) {
	if a.DType != b.DType {
		return nil, fmt.Errorf("concat dtype mismatch: %s vs %s", a.DType, b.DType)
	}
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("concat rank mismatch: %v vs %v", a.Shape, b.Shape)
	}
	for i := 1; i < len(a.Shape); i++ {
		if a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("concat trailing shape mismatch: %v vs %v", a.Shape, b.Shape)
		}
	}

	outShape := append([]int(nil), a.Shape...)
	outShape[0] = a.Shape[0] + b.Shape[0]

	out, err := Zeros(outShape, a.DType)
	if err != nil {
		return nil, err
	}

	switch a.DType {
	case Float32:
		outData := out.Data.([]float32)
		n := copy(outData, a.Data.([]float32))
		copy(outData[n:], b.Data.([]float32))
	case Int32:
		outData := out.Data.([]int32)
		n := copy(outData, a.Data.([]int32))
		copy(outData[n:], b.Data.([]int32))
	default:
		return nil, fmt.Errorf("unsupported dtype for concat: %s", a.DType)
	}
	return out, nil
}

// ArgMaxRows returns the index of the maximum value in each row of a 2D
// Float32 tensor
func ArgMaxRows(t *Tensor) ([]int, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("argmax requires a Float32 tensor, got %s", t.DType)
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("argmax requires a 2D tensor, got %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	data := t.Data.([]float32)
	out := make([]int, rows)

	for i := 0; i < rows; i++ {
		maxIdx := 0
		maxVal := data[i*cols]
		for j := 1; j < cols; j++ {
			if data[i*cols+j] > maxVal {
				maxVal = data[i*cols+j]
				maxIdx = j
			}
		}
		out[i] = maxIdx
	}
	return out, nil
}

// Sign returns a tensor holding the sign (-1, 0, +1) of each element
func Sign(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("sign requires a Float32 tensor, got %s", t.DType)
	}

	out, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	outData := out.Data.([]float32)
	for i, v := range data {
		switch {
		case v > 0:
			outData[i] = 1
		case v < 0:
			outData[i] = -1
		}
	}
	return out, nil
}

// SliceRow copies row i of a tensor whose first dimension indexes samples,
// returning a tensor with the trailing shape.
func SliceRow(t *Tensor, i int) (*Tensor, error) {
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("row index %d out of range [0, %d)", i, t.Shape[0])
	}

	rowShape := t.Shape[1:]
	if len(rowShape) == 0 {
		rowShape = []int{1}
	}
	rowSize := t.NumElems / t.Shape[0]

	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		row := make([]float32, rowSize)
		copy(row, data[i*rowSize:(i+1)*rowSize])
		return NewTensor(rowShape, Float32, row)
	case Int32:
		data := t.Data.([]int32)
		row := make([]int32, rowSize)
		copy(row, data[i*rowSize:(i+1)*rowSize])
		return NewTensor(rowShape, Int32, row)
	default:
		return nil, fmt.Errorf("unsupported dtype for row slicing: %s", t.DType)
	}
}

// IsFinite reports whether every element of a Float32 tensor is finite
func IsFinite(t *Tensor) bool {
	if t.DType != Float32 {
		return true
	}
	for _, v := range t.Data.([]float32) {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
