package model

import "gptcore/pkg/tensor"

// GELU is the stateless activation layer used between projections in GPT-2.
// It applies the tanh approximation from tensor.GELU.
type GELU struct{}

// Forward applies GELU element-wise. It never fails.
func (GELU) Forward(x *tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	return x.GELU(), nil
}
