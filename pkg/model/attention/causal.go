// Package attention implements causal self-attention for GPT-style models.
//
// This package provides:
//   - MultiHeadAttention: causal scaled dot-product attention split across heads,
//     with an output projection (GPT-2 style)
//   - CausalAttention: the single-head variant without output projection
//
// Both layers precompute a causal mask for their context length at
// construction and reject longer inputs at call time. Dropout on the
// attention weights is only applied when Forward is called with training=true.
package attention

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"gptcore/internal/logger"
	"gptcore/internal/metrics"
	"gptcore/internal/parallel"
	"gptcore/pkg/tensor"
)

// causalCore holds the state shared by the attention variants: the causal
// mask, the dropout configuration and the random source.
type causalCore struct {
	name          string
	contextLength int
	dropout       float32
	mask          []bool // (contextLength, contextLength), true above the diagonal
	workers       parallel.Config

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newCausalCore(name string, contextLength int, dropout float32, workers int, rng *rand.Rand) *causalCore {
	cfg := parallel.DefaultConfig()
	switch {
	case workers == 1:
		cfg = parallel.Sequential()
	case workers > 1:
		cfg.Enabled = true
		cfg.NumWorkers = workers
	}

	return &causalCore{
		name:          name,
		contextLength: contextLength,
		dropout:       dropout,
		mask:          tensor.CausalMask(contextLength),
		workers:       cfg,
		rng:           rng,
	}
}

// checkInput validates x against (batch, seq, dIn) and the context length.
func (c *causalCore) checkInput(x *tensor.Tensor, dIn int) (batch, seqLen int, err error) {
	switch {
	case x == nil:
		err = fmt.Errorf("%s: nil input: %w", c.name, ErrShapeMismatch)
	case len(x.Shape) != 3:
		err = fmt.Errorf("%s: expected 3D input (batch, seq, d_in), got %dD with shape %v: %w",
			c.name, len(x.Shape), x.Shape, ErrShapeMismatch)
	case x.Shape[2] != dIn:
		err = fmt.Errorf("%s: input dimension %d doesn't match expected %d: %w",
			c.name, x.Shape[2], dIn, ErrShapeMismatch)
	case x.Shape[1] == 0:
		err = fmt.Errorf("%s: empty sequence: %w", c.name, ErrShapeMismatch)
	case x.Shape[1] > c.contextLength:
		err = fmt.Errorf("%s: %d tokens, context length is %d: %w",
			c.name, x.Shape[1], c.contextLength, ErrSequenceTooLong)
	}
	if err != nil {
		errType := "shape"
		if x != nil && len(x.Shape) == 3 && x.Shape[1] > c.contextLength {
			errType = "sequence_too_long"
		}
		metrics.RecordValidationError(c.name+"_forward", errType)
		return 0, 0, err
	}
	return x.Shape[0], x.Shape[1], nil
}

// dropoutKeep draws the keep mask for n attention weights, or returns nil
// when dropout is inactive. Draws happen under the lock and in a fixed order
// so a given seed and call sequence reproduce the same masks.
func (c *causalCore) dropoutKeep(n int, training bool) []bool {
	if !training || c.dropout == 0 {
		return nil
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return tensor.DropoutMask(n, c.dropout, c.rng)
}

// attend runs causal attention over projected q, k, v of shape
// (batch, seq, numHeads*headDim). Head h reads and writes channels
// [h*headDim, (h+1)*headDim), so splitting and re-concatenating heads is
// implicit in the indexing.
//
// It returns the per-position context of shape (batch, seq, numHeads*headDim)
// and the attention weights of shape (batch, numHeads, seq, seq).
func (c *causalCore) attend(q, k, v *tensor.Tensor, numHeads, headDim int, scale float32, training bool) (*tensor.Tensor, *tensor.Tensor) {
	batch, seqLen, width := q.Shape[0], q.Shape[1], q.Shape[2]

	context := tensor.NewTensor([]int{batch, seqLen, width})
	weights := tensor.NewTensor([]int{batch, numHeads, seqLen, seqLen})
	keep := c.dropoutKeep(len(weights.Data), training)

	parallel.ForGrid(batch, numHeads, func(b, h int) {
		plane := (b*numHeads + h) * seqLen * seqLen
		rowBase := b * seqLen * width
		col := h * headDim
		scores := make([]float64, seqLen)

		for i := 0; i < seqLen; i++ {
			qi := q.Data[rowBase+i*width+col : rowBase+i*width+col+headDim]
			for j := 0; j < seqLen; j++ {
				kj := k.Data[rowBase+j*width+col : rowBase+j*width+col+headDim]
				var dot float32
				for d := range qi {
					dot += qi[d] * kj[d]
				}
				scores[j] = float64(dot * scale)
			}

			// The diagonal is never masked, so every row keeps a finite score.
			tensor.MaskRow(scores, c.mask[i*c.contextLength:(i+1)*c.contextLength], math.Inf(-1))
			row := weights.Data[plane+i*seqLen : plane+(i+1)*seqLen]
			tensor.SoftmaxRow(row, scores)
			if keep != nil {
				tensor.ApplyDropoutMask(row, row, keep[plane+i*seqLen:plane+(i+1)*seqLen], c.dropout)
			}

			out := context.Data[rowBase+i*width+col : rowBase+i*width+col+headDim]
			for j, w := range row {
				if w == 0 {
					continue
				}
				vj := v.Data[rowBase+j*width+col : rowBase+j*width+col+headDim]
				for d := range out {
					out[d] += w * vj[d]
				}
			}
		}
	}, c.workers)

	return context, weights
}

// observe records metrics for a finished forward pass.
func (c *causalCore) observe(start time.Time, seqLen int, out *tensor.Tensor) {
	metrics.RecordForward(c.name, time.Since(start))
	metrics.RecordSequenceLength(seqLen)
	if out.HasNonFinite() {
		metrics.RecordNumericalInstability(c.name)
		logger.Log.With("layer", c.name).Warn("non-finite attention output", "seq_len", seqLen)
	}
}

// CausalAttentionConfig holds configuration for CausalAttention.
type CausalAttentionConfig struct {
	DIn           int
	DOut          int
	ContextLength int
	Dropout       float32
	QKVBias       bool
	Seed          int64
	Workers       int // 0 uses every CPU, 1 runs sequentially
}

// Validate reports whether the configuration can build a layer.
func (c CausalAttentionConfig) Validate() error {
	if c.DIn <= 0 || c.DOut <= 0 {
		return fmt.Errorf("d_in (%d) and d_out (%d) must be positive: %w", c.DIn, c.DOut, ErrInvalidConfig)
	}
	if c.ContextLength <= 0 {
		return fmt.Errorf("context_length must be positive, got %d: %w", c.ContextLength, ErrInvalidConfig)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %v: %w", c.Dropout, ErrInvalidConfig)
	}
	return nil
}

// CausalAttention is single-head causal self-attention.
//
// Each position attends to itself and all previous positions, using one
// projection each for Query, Key and Value and no output projection.
type CausalAttention struct {
	*causalCore

	WQuery *Linear // (d_in, d_out)
	WKey   *Linear // (d_in, d_out)
	WValue *Linear // (d_in, d_out)
	DIn    int
	DOut   int
	Scale  float32 // 1/sqrt(d_out)
}

// NewCausalAttention creates a new single-head causal attention layer.
func NewCausalAttention(config CausalAttentionConfig) (*CausalAttention, error) {
	if err := config.Validate(); err != nil {
		metrics.RecordValidationError("causal_attention_new", "config")
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.Seed))
	return &CausalAttention{
		causalCore: newCausalCore("causal_attention", config.ContextLength, config.Dropout, config.Workers, rng),
		WQuery:     newLinear(config.DIn, config.DOut, config.QKVBias, rng),
		WKey:       newLinear(config.DIn, config.DOut, config.QKVBias, rng),
		WValue:     newLinear(config.DIn, config.DOut, config.QKVBias, rng),
		DIn:        config.DIn,
		DOut:       config.DOut,
		Scale:      float32(1.0 / math.Sqrt(float64(config.DOut))),
	}, nil
}

// Forward computes causal self-attention.
//
// Input shape: (batch, seq, d_in) with seq <= context length
// Output shape: (batch, seq, d_out)
func (c *CausalAttention) Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	out, _, err := c.ForwardWithWeights(x, training)
	return out, err
}

// ForwardWithWeights is Forward that also returns the attention weights,
// shape (batch, 1, seq, seq). As for MultiHeadAttention, rows returned in
// training mode carry dropout and do not sum to 1.
func (c *CausalAttention) ForwardWithWeights(x *tensor.Tensor, training bool) (*tensor.Tensor, *tensor.Tensor, error) {
	start := time.Now()
	_, seqLen, err := c.checkInput(x, c.DIn)
	if err != nil {
		return nil, nil, err
	}

	q, err := c.WQuery.Forward(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute queries: %w", err)
	}
	k, err := c.WKey.Forward(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute keys: %w", err)
	}
	v, err := c.WValue.Forward(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute values: %w", err)
	}

	out, weights := c.attend(q, k, v, 1, c.DOut, c.Scale, training)
	c.observe(start, seqLen, out)
	return out, weights, nil
}
