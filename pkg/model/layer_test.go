package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptcore/pkg/model/attention"
	"gptcore/pkg/tensor"
)

func TestGELULayer(t *testing.T) {
	x, err := tensor.FromSlice([]float32{-1, 0, 1}, []int{1, 3})
	require.NoError(t, err)

	out, err := GELU{}.Forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, x.GELU().Data, out.Data)
	assert.Zero(t, out.Data[1])
}

func TestSequential(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingDim = 8
	cfg.NumHeads = 2
	cfg.ContextLength = 4
	cfg.Dropout = 0

	norm, err := NewLayerNorm(cfg.EmbeddingDim)
	require.NoError(t, err)
	attn, err := attention.NewMultiHeadAttention(cfg.AttentionConfig())
	require.NoError(t, err)

	pipeline := Sequential{norm, attn, GELU{}}
	x := tensor.Full([]int{2, 4, 8}, 0.5)
	for i := range x.Data {
		x.Data[i] += float32(i%5) * 0.1
	}

	out, err := pipeline.Forward(x, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 8}, out.Shape)

	// Same result as running the stages by hand.
	step, err := norm.Forward(x, false)
	require.NoError(t, err)
	step, err = attn.Forward(step, false)
	require.NoError(t, err)
	assert.Equal(t, step.GELU().Data, out.Data)
}

func TestSequential_PropagatesErrors(t *testing.T) {
	norm, err := NewLayerNorm(8)
	require.NoError(t, err)
	attn, err := attention.NewMultiHeadAttention(attention.MultiHeadAttentionConfig{
		DIn: 8, DOut: 8, NumHeads: 2, ContextLength: 2,
	})
	require.NoError(t, err)

	_, err = Sequential{norm, attn}.Forward(tensor.NewTensor([]int{1, 3, 8}), false)
	assert.ErrorIs(t, err, attention.ErrSequenceTooLong)
	assert.Contains(t, err.Error(), "layer 1")
}
