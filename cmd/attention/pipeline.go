package main

import (
	"fmt"
	"math"
	"math/rand"

	"gptcore/internal/logger"
	"gptcore/pkg/dataset"
	"gptcore/pkg/model"
	"gptcore/pkg/model/attention"
	"gptcore/pkg/tensor"
)

// vocabSize bounds token ids for the embedding lookup (GPT-2's vocabulary).
const vocabSize = 50257

// summary describes one output batch.
type summary struct {
	Shape []int
	Mean  float64
	Std   float64
	Min   float32
	Max   float32
}

// embedder maps token ids to vectors with random token and position tables.
// Token rows are drawn on first use from a generator seeded with the table
// seed and the id, so the full (vocabSize, dim) table is never allocated.
type embedder struct {
	dim       int
	seed      int64
	tokens    map[int][]float32
	positions []float32 // (contextLength, dim)
}

func newEmbedder(dim, contextLength int, seed int64) *embedder {
	rng := rand.New(rand.NewSource(seed))
	e := &embedder{
		dim:       dim,
		seed:      seed,
		tokens:    make(map[int][]float32),
		positions: make([]float32, contextLength*dim),
	}
	for i := range e.positions {
		e.positions[i] = float32(rng.NormFloat64())
	}
	return e
}

func (e *embedder) token(id int) []float32 {
	if row, ok := e.tokens[id]; ok {
		return row
	}
	rng := rand.New(rand.NewSource(e.seed*vocabSize + int64(id) + 1))
	row := make([]float32, e.dim)
	for d := range row {
		row[d] = float32(rng.NormFloat64())
	}
	e.tokens[id] = row
	return row
}

// embed returns a (len(inputs), seq, dim) tensor of token plus position vectors.
func (e *embedder) embed(inputs [][]int) (*tensor.Tensor, error) {
	seqLen := len(inputs[0])
	out := tensor.NewTensor([]int{len(inputs), seqLen, e.dim})
	for b, row := range inputs {
		for i, id := range row {
			if id < 0 || id >= vocabSize {
				return nil, fmt.Errorf("token id %d outside vocabulary of %d", id, vocabSize)
			}
			dst := out.Data[(b*seqLen+i)*e.dim : (b*seqLen+i+1)*e.dim]
			tok := e.token(id)
			pos := e.positions[i*e.dim : (i+1)*e.dim]
			for d := range dst {
				dst[d] = tok[d] + pos[d]
			}
		}
	}
	return out, nil
}

// buildStack assembles LayerNorm -> multi-head attention -> GELU.
func buildStack(cfg model.Config) (model.Sequential, error) {
	norm, err := model.NewLayerNorm(cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	mha, err := attention.NewMultiHeadAttention(cfg.AttentionConfig())
	if err != nil {
		return nil, err
	}
	return model.Sequential{norm, mha, model.GELU{}}, nil
}

// process windows text, embeds each batch and runs it through the stack.
func process(cfg model.Config, text string, tok dataset.Tokenizer, train bool) ([]summary, error) {
	ds, err := dataset.FromText(text, tok, cfg.ContextLength, cfg.Stride)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("input is too short for a window of %d tokens", cfg.ContextLength)
	}
	log := logger.Log.With("max_length", ds.MaxLength(), "stride", cfg.Stride)
	log.Debug("dataset built", "windows", ds.Len())

	loader, err := dataset.NewLoader(ds, dataset.LoaderConfig{BatchSize: cfg.BatchSize, Seed: cfg.Seed})
	if err != nil {
		return nil, err
	}
	stack, err := buildStack(cfg)
	if err != nil {
		return nil, err
	}
	emb := newEmbedder(cfg.EmbeddingDim, cfg.ContextLength, cfg.Seed)

	var out []summary
	for i, batch := range loader.Batches() {
		x, err := emb.embed(batch.Inputs)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		y, err := stack.Forward(x, train)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		log.Debug("batch forwarded", "batch", i, "windows", batch.Size())
		out = append(out, summarize(y))
	}
	return out, nil
}

func summarize(t *tensor.Tensor) summary {
	s := summary{
		Shape: append([]int(nil), t.Shape...),
		Min:   float32(math.Inf(1)),
		Max:   float32(math.Inf(-1)),
	}
	var sum, sumSq float64
	for _, v := range t.Data {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	n := float64(len(t.Data))
	s.Mean = sum / n
	s.Std = math.Sqrt(max(sumSq/n-s.Mean*s.Mean, 0))
	return s
}
