package attention

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gptcore/internal/logger"
	"gptcore/internal/metrics"
	"gptcore/pkg/tensor"
)

// MultiHeadAttentionConfig holds configuration for MultiHeadAttention.
type MultiHeadAttentionConfig struct {
	DIn           int
	DOut          int
	ContextLength int
	Dropout       float32
	NumHeads      int
	QKVBias       bool  // bias on the query/key/value projections; OutProj always has one
	Seed          int64 // seeds weight initialisation and the dropout draws
	Workers       int   // 0 uses every CPU, 1 runs sequentially
}

// Validate reports whether the configuration can build a layer.
func (c MultiHeadAttentionConfig) Validate() error {
	if c.NumHeads <= 0 {
		return fmt.Errorf("num_heads must be positive, got %d: %w", c.NumHeads, ErrInvalidConfig)
	}
	if err := (CausalAttentionConfig{DIn: c.DIn, DOut: c.DOut, ContextLength: c.ContextLength, Dropout: c.Dropout}).Validate(); err != nil {
		return err
	}
	if c.DOut%c.NumHeads != 0 {
		return fmt.Errorf("d_out (%d) must be divisible by num_heads (%d): %w", c.DOut, c.NumHeads, ErrInvalidConfig)
	}
	return nil
}

// MultiHeadAttention implements causal multi-head self-attention.
//
// The d_out projection space is split into NumHeads subspaces of HeadDim
// channels that attend independently; their outputs are concatenated in head
// order and mixed by OutProj.
//
// The causal mask and weights are only read during Forward, so concurrent
// Forward calls are safe. Updating weights must not overlap with a Forward.
type MultiHeadAttention struct {
	*causalCore

	NumHeads      int
	HeadDim       int
	DIn           int
	DOut          int
	ContextLength int
	Dropout       float32
	Scale         float32 // 1/sqrt(head_dim)

	WQuery  *Linear // (d_in, d_out)
	WKey    *Linear // (d_in, d_out)
	WValue  *Linear // (d_in, d_out)
	OutProj *Linear // (d_out, d_out), with bias
}

// NewMultiHeadAttention creates a new multi-head attention layer.
func NewMultiHeadAttention(config MultiHeadAttentionConfig) (*MultiHeadAttention, error) {
	if err := config.Validate(); err != nil {
		metrics.RecordValidationError("multi_head_attention_new", "config")
		return nil, err
	}

	headDim := config.DOut / config.NumHeads
	rng := rand.New(rand.NewSource(config.Seed))

	m := &MultiHeadAttention{
		causalCore:    newCausalCore("multi_head_attention", config.ContextLength, config.Dropout, config.Workers, rng),
		NumHeads:      config.NumHeads,
		HeadDim:       headDim,
		DIn:           config.DIn,
		DOut:          config.DOut,
		ContextLength: config.ContextLength,
		Dropout:       config.Dropout,
		Scale:         float32(1.0 / math.Sqrt(float64(headDim))),
		WQuery:        newLinear(config.DIn, config.DOut, config.QKVBias, rng),
		WKey:          newLinear(config.DIn, config.DOut, config.QKVBias, rng),
		WValue:        newLinear(config.DIn, config.DOut, config.QKVBias, rng),
		OutProj:       newLinear(config.DOut, config.DOut, true, rng),
	}

	logger.Log.Debug("multi-head attention initialised",
		"d_in", m.DIn, "d_out", m.DOut, "heads", m.NumHeads, "head_dim", m.HeadDim,
		"context_length", m.ContextLength, "params", m.NumParams())
	return m, nil
}

// NumParams returns the number of learned values across all projections.
func (m *MultiHeadAttention) NumParams() int {
	return m.WQuery.NumParams() + m.WKey.NumParams() + m.WValue.NumParams() + m.OutProj.NumParams()
}

// Forward computes multi-head causal self-attention.
//
// Input shape: (batch, seq, d_in) with seq <= ContextLength
// Output shape: (batch, seq, d_out)
//
// training enables dropout on the attention weights.
func (m *MultiHeadAttention) Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	out, _, err := m.ForwardWithWeights(x, training)
	return out, err
}

// ForwardWithWeights is Forward that also returns the attention weights,
// shape (batch, num_heads, seq, seq), after masking, softmax and dropout.
//
// With training=false, or a zero dropout rate, every row is a distribution
// over the visible positions and sums to 1. With training=true the returned
// rows are the ones multiplied with V: dropped entries are 0 and kept entries
// are scaled by 1/(1-dropout), so a row does not sum to 1.
//
// Steps:
//  1. Project x to Q, K, V: (batch, seq, d_out)
//  2. Per head: scores = Q_h @ K_h^T, masked above the diagonal
//  3. Softmax of scores / sqrt(head_dim) along the key axis
//  4. Dropout on the weights (training only)
//  5. Context = weights @ V_h, written back into the head's channels
//  6. Output projection
func (m *MultiHeadAttention) ForwardWithWeights(x *tensor.Tensor, training bool) (*tensor.Tensor, *tensor.Tensor, error) {
	start := time.Now()
	_, seqLen, err := m.checkInput(x, m.DIn)
	if err != nil {
		return nil, nil, err
	}

	q, err := m.WQuery.Forward(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute Q: %w", err)
	}
	k, err := m.WKey.Forward(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute K: %w", err)
	}
	v, err := m.WValue.Forward(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute V: %w", err)
	}

	context, weights := m.attend(q, k, v, m.NumHeads, m.HeadDim, m.Scale, training)

	out, err := m.OutProj.Forward(context)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply output projection: %w", err)
	}

	m.observe(start, seqLen, out)
	return out, weights, nil
}
