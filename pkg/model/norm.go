package model

import (
	"fmt"
	"math"
	"time"

	"gptcore/internal/metrics"
	"gptcore/pkg/tensor"
)

// DefaultEps is the variance epsilon used by GPT-2's LayerNorm.
const DefaultEps = 1e-5

// LayerNorm implements layer normalization with learnable scale and shift.
//
// LayerNorm normalizes the input across the last dimension (feature dimension)
// and applies a learned scale (gamma) and shift (beta) transformation.
//
// Formula:
//
//	mean = mean(x, dim=-1)
//	var = mean((x - mean)^2, dim=-1)   // population variance, divides by N
//	x_norm = (x - mean) / sqrt(var + eps)
//	output = x_norm * scale + shift
//
// eps only guards the division; with embDim == 1 the variance is 0 and the
// output collapses to shift.
type LayerNorm struct {
	Scale *tensor.Tensor // (emb_dim,) - gamma parameter
	Shift *tensor.Tensor // (emb_dim,) - beta parameter
	Eps   float32
}

// NewLayerNorm creates a LayerNorm over embDim features with scale=1,
// shift=0 and eps=DefaultEps.
func NewLayerNorm(embDim int) (*LayerNorm, error) {
	return NewLayerNormWithEps(embDim, DefaultEps)
}

// NewLayerNormWithEps is NewLayerNorm with an explicit epsilon.
func NewLayerNormWithEps(embDim int, eps float32) (*LayerNorm, error) {
	if embDim <= 0 {
		return nil, fmt.Errorf("layer norm dimension must be positive, got %d", embDim)
	}
	if eps <= 0 {
		return nil, fmt.Errorf("layer norm eps must be positive, got %v", eps)
	}

	return &LayerNorm{
		Scale: tensor.Full([]int{embDim}, 1),
		Shift: tensor.NewTensor([]int{embDim}),
		Eps:   eps,
	}, nil
}

// Forward applies layer normalization to x.
//
// Input shape: (..., emb_dim)
// Output shape: same as input
//
// Each slice along the last axis is normalized independently. training is
// ignored.
func (ln *LayerNorm) Forward(x *tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	start := time.Now()
	if x == nil || len(x.Shape) == 0 {
		metrics.RecordValidationError("layer_norm_forward", "shape")
		return nil, fmt.Errorf("cannot apply LayerNorm to 0D tensor: %w", tensor.ErrShapeMismatch)
	}

	dim := x.Shape[len(x.Shape)-1]
	if dim != len(ln.Scale.Data) {
		metrics.RecordValidationError("layer_norm_forward", "shape")
		return nil, fmt.Errorf("input last dimension %d doesn't match LayerNorm dimension %d: %w",
			dim, len(ln.Scale.Data), tensor.ErrShapeMismatch)
	}

	result := tensor.NewTensor(x.Shape)
	eps := float64(ln.Eps)

	for offset := 0; offset < len(x.Data); offset += dim {
		row := x.Data[offset : offset+dim]

		mean := 0.0
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(dim)

		variance := 0.0
		for _, v := range row {
			diff := float64(v) - mean
			variance += diff * diff
		}
		variance /= float64(dim)

		invStd := 1 / math.Sqrt(variance+eps)
		out := result.Data[offset : offset+dim]
		for i, v := range row {
			norm := (float64(v) - mean) * invStd
			out[i] = float32(norm)*ln.Scale.Data[i] + ln.Shift.Data[i]
		}
	}

	metrics.RecordForward("layer_norm", time.Since(start))
	return result, nil
}
