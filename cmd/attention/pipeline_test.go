package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptcore/pkg/dataset"
	"gptcore/pkg/model"
	"gptcore/pkg/tensor"
)

// byteTokenizer encodes each byte as its value.
type byteTokenizer struct{}

func (byteTokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := range text {
		ids[i] = int(text[i])
	}
	return ids, nil
}

// stubTokenizer replaces the tiktoken loader for the duration of a test.
func stubTokenizer(t *testing.T, tok dataset.Tokenizer, err error) {
	t.Helper()
	orig := newTokenizer
	newTokenizer = func(string) (dataset.Tokenizer, error) { return tok, err }
	t.Cleanup(func() { newTokenizer = orig })
}

func smallConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.EmbeddingDim = 8
	cfg.NumHeads = 2
	cfg.ContextLength = 4
	cfg.Stride = 4
	cfg.BatchSize = 2
	cfg.Dropout = 0
	return cfg
}

func TestProcess(t *testing.T) {
	cfg := smallConfig()
	text := strings.Repeat("abcd", 5) // 20 tokens -> 4 windows -> 2 batches

	summaries, err := process(cfg, text, byteTokenizer{}, false)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, []int{2, 4, 8}, s.Shape)
		assert.LessOrEqual(t, s.Min, s.Max)
		assert.GreaterOrEqual(t, float64(s.Min), -0.2, "GELU output is bounded below")
	}

	again, err := process(cfg, text, byteTokenizer{}, false)
	require.NoError(t, err)
	assert.Equal(t, summaries, again)
}

func TestProcessShortInput(t *testing.T) {
	_, err := process(smallConfig(), "abc", byteTokenizer{}, false)
	assert.Error(t, err)
}

func TestEmbedRejectsOutOfVocabulary(t *testing.T) {
	e := newEmbedder(4, 2, 1)
	_, err := e.embed([][]int{{1, vocabSize}})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, []int{2, 2})
	require.NoError(t, err)

	s := summarize(x)
	assert.Equal(t, []int{2, 2}, s.Shape)
	assert.InDelta(t, 2.5, s.Mean, 1e-9)
	assert.InDelta(t, 1.118034, s.Std, 1e-6)
	assert.Equal(t, float32(1), s.Min)
	assert.Equal(t, float32(4), s.Max)
}

func TestRunWithDefaults(t *testing.T) {
	stubTokenizer(t, byteTokenizer{}, nil)
	require.NoError(t, run("", "", "", 0, false))
}

func TestRunWithInputFile(t *testing.T) {
	stubTokenizer(t, byteTokenizer{}, nil)
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("attention ", 10)), 0o600))

	require.NoError(t, run("", path, "", 16, false))

	// Without an override a short file cannot fill GPT-2's context.
	assert.ErrorContains(t, run("", path, "", 0, false), "too short")
	assert.Error(t, run("", filepath.Join(t.TempDir(), "missing.txt"), "", 16, false))
}

func TestRunTokenizerError(t *testing.T) {
	boom := errors.New("encoding unavailable")
	stubTokenizer(t, nil, boom)
	assert.ErrorIs(t, run("", "", "", 0, false), boom)
}

func TestBuildConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding_dim: 8\nnum_heads: 2\ncontext_length: 16\nstride: 12\n"), 0o600))

	tests := []struct {
		name          string
		configPath    string
		contextLength int
		sample        bool
		wantContext   int
		wantStride    int
	}{
		{"sample clamps defaults", "", 0, true, sampleContextLength, sampleContextLength},
		{"file input keeps defaults", "", 0, false, 1024, 1024},
		{"override clamps stride", "", 8, false, 8, 8},
		{"override wins over sample", "", 64, true, 64, 64},
		{"override above stride keeps stride", path, 20, false, 20, 12},
		{"small config left alone", path, 0, true, 16, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildConfig(tt.configPath, tt.contextLength, tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContext, cfg.ContextLength)
			assert.Equal(t, tt.wantStride, cfg.Stride)
		})
	}

	_, err := buildConfig(filepath.Join(t.TempDir(), "missing.yaml"), 0, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmbedderIsDeterministic(t *testing.T) {
	a := newEmbedder(4, 2, 9)
	b := newEmbedder(4, 2, 9)

	xa, err := a.embed([][]int{{3, 50000}})
	require.NoError(t, err)
	xb, err := b.embed([][]int{{3, 50000}})
	require.NoError(t, err)
	assert.Equal(t, xa.Data, xb.Data)

	assert.Equal(t, a.token(3), a.token(3))
	assert.NotEqual(t, a.token(3), a.token(4))
}
