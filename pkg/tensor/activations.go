package tensor

import "math"

// GELU constants for the tanh approximation.
const (
	sqrt2OverPi = 0.7978845608028654 // sqrt(2/π)
	geluCoeff   = 0.044715
)

// GELU applies the Gaussian Error Linear Unit activation function.
//
// The tanh approximation used by GPT-2 is computed, not the exact erf form:
//
//	GELU(x) = 0.5 * x * (1 + tanh(sqrt(2/π) * (x + 0.044715 * x^3)))
//
// Input: tensor of any shape
// Output: tensor of the same shape with GELU applied element-wise
func (t *Tensor) GELU() *Tensor {
	result := NewTensor(t.Shape)
	for i, v := range t.Data {
		result.Data[i] = float32(GELUScalar(float64(v)))
	}
	return result
}

// GELU is a standalone function that applies GELU to a tensor.
func GELU(t *Tensor) *Tensor {
	return t.GELU()
}

// GELUScalar evaluates the tanh approximation for a single value.
func GELUScalar(x float64) float64 {
	return 0.5 * x * (1 + math.Tanh(sqrt2OverPi*(x+geluCoeff*x*x*x)))
}
