package attention

import (
	"math"
	"math/rand"

	"gptcore/pkg/tensor"
)

// Linear is a dense projection y = x @ Weight + Bias.
type Linear struct {
	Weight *tensor.Tensor // (in, out)
	Bias   *tensor.Tensor // (out,) or nil
}

// newLinear allocates a projection initialised uniformly in ±1/√in,
// matching the usual nn.Linear default.
func newLinear(in, out int, bias bool, rng *rand.Rand) *Linear {
	bound := float32(1 / math.Sqrt(float64(in)))
	l := &Linear{Weight: uniform([]int{in, out}, bound, rng)}
	if bias {
		l.Bias = uniform([]int{out}, bound, rng)
	}
	return l
}

func uniform(shape []int, bound float32, rng *rand.Rand) *tensor.Tensor {
	t := tensor.NewTensor(shape)
	for i := range t.Data {
		t.Data[i] = (rng.Float32()*2 - 1) * bound
	}
	return t
}

// Forward applies the projection to x of shape (..., in).
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Linear(x, l.Weight, l.Bias)
}

// NumParams returns the number of learned values.
func (l *Linear) NumParams() int {
	n := len(l.Weight.Data)
	if l.Bias != nil {
		n += len(l.Bias.Data)
	}
	return n
}
