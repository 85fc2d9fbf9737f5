// Package tensor provides the dense float32 tensor used by the attention and
// normalization layers. Data is stored flat in row-major order with shape and
// stride metadata; there is no autograd.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when operand shapes are incompatible.
var ErrShapeMismatch = errors.New("shape mismatch")

// Tensor represents a multi-dimensional array of float32 values.
type Tensor struct {
	Data    []float32 // Flattened data storage
	Shape   []int     // Dimensions (e.g., [batch, heads, seq, dim])
	Strides []int     // Row-major strides
}

// NewTensor creates a new tensor with the given shape, initialized to zeros.
func NewTensor(shape []int) *Tensor {
	return &Tensor{
		Data:    make([]float32, numElements(shape)),
		Shape:   copyShape(shape),
		Strides: stridesFor(shape),
	}
}

// FromSlice creates a tensor from a copy of data with the given shape.
func FromSlice(data []float32, shape []int) (*Tensor, error) {
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, shape)
		}
	}
	expected := numElements(shape)
	if len(data) != expected {
		return nil, fmt.Errorf("data size %d does not match shape %v (expected %d elements): %w",
			len(data), shape, expected, ErrShapeMismatch)
	}

	t := NewTensor(shape)
	copy(t.Data, data)
	return t, nil
}

// Full creates a tensor of the given shape with every element set to value.
func Full(shape []int, value float32) *Tensor {
	t := NewTensor(shape)
	for i := range t.Data {
		t.Data[i] = value
	}
	return t
}

// FlatIndex converts multi-dimensional indices to a flat index.
func (t *Tensor) FlatIndex(indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("indices length %d does not match shape dimensions %d",
			len(indices), len(t.Shape)))
	}

	idx := 0
	for i := range t.Shape {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d with size %d",
				indices[i], i, t.Shape[i]))
		}
		idx += indices[i] * t.Strides[i]
	}
	return idx
}

// Get retrieves a value at the specified indices.
func (t *Tensor) Get(indices ...int) float32 {
	return t.Data[t.FlatIndex(indices)]
}

// Set sets a value at the specified indices.
func (t *Tensor) Set(value float32, indices ...int) {
	t.Data[t.FlatIndex(indices)] = value
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := NewTensor(t.Shape)
	copy(c.Data, t.Data)
	return c
}

// HasNonFinite reports whether any element is NaN or ±Inf.
func (t *Tensor) HasNonFinite() bool {
	for _, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// CausalMask returns an n×n row-major mask where entry (i, j) is true when
// j > i, i.e. when position i must not see position j.
func CausalMask(n int) []bool {
	mask := make([]bool, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			mask[i*n+j] = true
		}
	}
	return mask
}

// MaskRow writes value into row wherever mask is true. mask is one row of a
// CausalMask, possibly wider than row; only its first len(row) entries are read.
func MaskRow(row []float64, mask []bool, value float64) {
	for j := range row {
		if mask[j] {
			row[j] = value
		}
	}
}

// SoftmaxRow writes the softmax of logits into dst. The maximum is
// subtracted before exponentiating and sums are accumulated in float64.
// logits is overwritten with the exponentials. -Inf entries get weight 0;
// at least one entry must be finite.
func SoftmaxRow(dst []float32, logits []float64) {
	maxVal := math.Inf(-1)
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}

	sum := 0.0
	for i, v := range logits {
		logits[i] = math.Exp(v - maxVal)
		sum += logits[i]
	}
	for i, e := range logits {
		dst[i] = float32(e / sum)
	}
}

func numElements(shape []int) int {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

func stridesFor(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func copyShape(shape []int) []int {
	result := make([]int, len(shape))
	copy(result, shape)
	return result
}
