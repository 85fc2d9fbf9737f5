package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer maps each whitespace-separated word to its length.
type wordTokenizer struct{ err error }

func (w wordTokenizer) Encode(text string) ([]int, error) {
	if w.err != nil {
		return nil, w.err
	}
	var ids []int
	for _, f := range strings.Fields(text) {
		ids = append(ids, len(f))
	}
	return ids, nil
}

func seq(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func TestSlidingWindow(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		maxLength int
		stride    int
		wantLen   int
	}{
		{"non-overlapping", 9, 4, 4, 2},
		{"stride one", 6, 4, 1, 2},
		{"overlapping", 10, 4, 2, 3},
		{"exact fit yields none", 4, 4, 1, 0},
		{"too short", 2, 4, 1, 0},
		{"empty", 0, 4, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := NewSlidingWindow(seq(tt.n), tt.maxLength, tt.stride)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, ds.Len())
			assert.Equal(t, tt.maxLength, ds.MaxLength())

			for i := 0; i < ds.Len(); i++ {
				input, target, err := ds.Get(i)
				require.NoError(t, err)
				require.Len(t, input, tt.maxLength)
				require.Len(t, target, tt.maxLength)
				assert.Equal(t, i*tt.stride, input[0])
				for j := range input {
					assert.Equal(t, input[j]+1, target[j], "target is input shifted by one")
				}
			}
		})
	}
}

func TestSlidingWindowCopiesInput(t *testing.T) {
	ids := seq(6)
	ds, err := NewSlidingWindow(ids, 4, 1)
	require.NoError(t, err)

	ids[0] = 99
	input, _, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 0, input[0])
}

func TestSlidingWindowInvalid(t *testing.T) {
	_, err := NewSlidingWindow(seq(8), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewSlidingWindow(seq(8), 4, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	ds, err := NewSlidingWindow(seq(8), 4, 1)
	require.NoError(t, err)
	_, _, err = ds.Get(-1)
	assert.Error(t, err)
	_, _, err = ds.Get(ds.Len())
	assert.Error(t, err)
}

func TestFromText(t *testing.T) {
	ds, err := FromText("a bb ccc dddd eeeee", wordTokenizer{}, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	input, target, err := ds.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, input)
	assert.Equal(t, []int{3, 4}, target)

	boom := errors.New("boom")
	_, err = FromText("x", wordTokenizer{err: boom}, 2, 1)
	assert.ErrorIs(t, err, boom)
}

func TestLoader(t *testing.T) {
	ds, err := NewSlidingWindow(seq(11), 2, 1) // 9 windows
	require.NoError(t, err)
	require.Equal(t, 9, ds.Len())

	t.Run("keeps partial batch", func(t *testing.T) {
		l, err := NewLoader(ds, LoaderConfig{BatchSize: 4})
		require.NoError(t, err)
		batches := l.Batches()
		require.Len(t, batches, 3)
		assert.Equal(t, 4, batches[0].Size())
		assert.Equal(t, 1, batches[2].Size())
		assert.Equal(t, []int{0, 1}, batches[0].Inputs[0])
		assert.Equal(t, []int{1, 2}, batches[0].Targets[0])
	})

	t.Run("drop last", func(t *testing.T) {
		l, err := NewLoader(ds, LoaderConfig{BatchSize: 4, DropLast: true})
		require.NoError(t, err)
		batches := l.Batches()
		require.Len(t, batches, 2)
		for _, b := range batches {
			assert.Equal(t, 4, b.Size())
		}
	})

	t.Run("shuffle is a seeded permutation", func(t *testing.T) {
		cfg := LoaderConfig{BatchSize: 3, Shuffle: true, Seed: 7}
		a, err := NewLoader(ds, cfg)
		require.NoError(t, err)
		b, err := NewLoader(ds, cfg)
		require.NoError(t, err)

		first := a.Batches()
		assert.Equal(t, first, b.Batches())

		seen := make(map[int]bool)
		for _, batch := range first {
			for i, in := range batch.Inputs {
				assert.Equal(t, in[0]+1, batch.Targets[i][0], "pairs stay aligned")
				seen[in[0]] = true
			}
		}
		assert.Len(t, seen, ds.Len())
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := NewLoader(ds, LoaderConfig{BatchSize: 0})
		assert.Error(t, err)
	})
}

func TestTikToken(t *testing.T) {
	tok, err := NewTikToken("r50k_base")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	assert.Equal(t, "r50k_base", tok.Name())

	ids, err := tok.Encode("Hello, world. " + EndOfText + " In the sunlit terraces")
	require.NoError(t, err)
	assert.Contains(t, ids, 50256, "end of text encodes as one special token")
	assert.Equal(t, "Hello, world. "+EndOfText+" In the sunlit terraces", tok.Decode(ids))

	hello, err := tok.Encode("Hello")
	require.NoError(t, err)
	assert.Equal(t, []int{15496}, hello)
}
