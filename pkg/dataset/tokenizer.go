package dataset

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// EndOfText is the document separator token text in GPT-2's vocabulary.
const EndOfText = "<|endoftext|>"

// Tokenizer turns text into token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// TikToken wraps the pkoukk/tiktoken-go library.
//
// "r50k_base" is the byte-pair encoding used by GPT-2; "p50k_base" and
// "cl100k_base" are also available.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding. The BPE ranks are fetched and cached
// by tiktoken-go on first use.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode converts text to token ids. EndOfText is kept as a single special token.
func (t *TikToken) Encode(text string) ([]int, error) {
	return t.encoding.Encode(text, []string{EndOfText}, nil), nil
}

// Decode converts token ids back to text.
func (t *TikToken) Decode(ids []int) string {
	return t.encoding.Decode(ids)
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
