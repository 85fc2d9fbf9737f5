// Package dataset chunks a token stream into fixed-length training windows.
//
// Each window pairs an input sequence with the same sequence shifted by one
// token, the next-token targets a causal language model is trained on.
package dataset

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned for non-positive window lengths or strides.
var ErrInvalidWindow = errors.New("invalid window")

// SlidingWindow holds overlapping (input, target) windows over a token stream.
//
// Window i covers ids[i*stride : i*stride+maxLength] and its target is the
// same range shifted right by one. Consecutive windows overlap by
// maxLength-stride tokens when stride < maxLength.
type SlidingWindow struct {
	inputs    [][]int
	targets   [][]int
	maxLength int
	stride    int
}

// NewSlidingWindow builds the windows over ids. A stream of n tokens yields
// a window for every start in [0, n-maxLength) stepping by stride, so the
// last target never runs past the stream.
func NewSlidingWindow(ids []int, maxLength, stride int) (*SlidingWindow, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("max length must be positive, got %d: %w", maxLength, ErrInvalidWindow)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("stride must be positive, got %d: %w", stride, ErrInvalidWindow)
	}

	ds := &SlidingWindow{maxLength: maxLength, stride: stride}
	for i := 0; i < len(ids)-maxLength; i += stride {
		input := make([]int, maxLength)
		target := make([]int, maxLength)
		copy(input, ids[i:i+maxLength])
		copy(target, ids[i+1:i+maxLength+1])
		ds.inputs = append(ds.inputs, input)
		ds.targets = append(ds.targets, target)
	}
	return ds, nil
}

// FromText tokenizes text and windows the result.
func FromText(text string, tok Tokenizer, maxLength, stride int) (*SlidingWindow, error) {
	ids, err := tok.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	return NewSlidingWindow(ids, maxLength, stride)
}

// Len returns the number of windows.
func (s *SlidingWindow) Len() int {
	return len(s.inputs)
}

// MaxLength returns the window length.
func (s *SlidingWindow) MaxLength() int {
	return s.maxLength
}

// Get returns window i. The slices are owned by the dataset and must not be modified.
func (s *SlidingWindow) Get(i int) (input, target []int, err error) {
	if i < 0 || i >= len(s.inputs) {
		return nil, nil, fmt.Errorf("window %d out of range [0, %d)", i, len(s.inputs))
	}
	return s.inputs[i], s.targets[i], nil
}
