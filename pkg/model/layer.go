// Package model provides the learned-parameter layers that surround causal
// self-attention in a GPT-2 style network: layer normalization with scale and
// shift, the tanh-approximated GELU, and the configuration shared with the
// attention package.
package model

import (
	"fmt"

	"gptcore/pkg/model/attention"
	"gptcore/pkg/tensor"
)

// Layer is a tensor-to-tensor transform.
//
// training selects training-mode behaviour such as dropout; layers without
// stochastic parts ignore it.
type Layer interface {
	Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error)
}

var (
	_ Layer = (*LayerNorm)(nil)
	_ Layer = GELU{}
	_ Layer = (*attention.MultiHeadAttention)(nil)
	_ Layer = (*attention.CausalAttention)(nil)
	_ Layer = Sequential(nil)
)

// Sequential applies its layers in order.
type Sequential []Layer

// Forward runs x through every layer, stopping at the first error.
func (s Sequential) Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	out := x
	for i, layer := range s {
		var err error
		out, err = layer.Forward(out, training)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%T): %w", i, layer, err)
		}
	}
	return out, nil
}
