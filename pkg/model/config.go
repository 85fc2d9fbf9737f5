package model

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gptcore/pkg/model/attention"
)

// Config holds the hyperparameters consumed by the attention and
// normalization layers, plus the windowing settings of the data source that
// feeds them.
type Config struct {
	// EmbeddingDim is the width of token embeddings and of the attention
	// input/output (768 for GPT-2 124M)
	EmbeddingDim int `yaml:"embedding_dim"`

	// ContextLength is the maximum sequence length (1024 for GPT-2)
	ContextLength int `yaml:"context_length"`

	// NumHeads is the number of attention heads (12 for GPT-2 124M)
	NumHeads int `yaml:"num_heads"`

	// Dropout is the attention-weight dropout rate (0.1 for GPT-2)
	Dropout float32 `yaml:"dropout"`

	// QKVBias determines if Q/K/V projections use bias (false for GPT-2)
	QKVBias bool `yaml:"qkv_bias"`

	// Seed drives weight initialisation and dropout draws
	Seed int64 `yaml:"seed"`

	// Workers bounds attention parallelism; 0 uses every CPU
	Workers int `yaml:"workers"`

	// Stride is the step between dataset windows; windows overlap by
	// ContextLength - Stride tokens
	Stride int `yaml:"stride"`

	// BatchSize is the number of windows per batch
	BatchSize int `yaml:"batch_size"`

	// Encoding is the tiktoken encoding name ("r50k_base" is GPT-2's BPE)
	Encoding string `yaml:"encoding"`
}

// DefaultConfig returns the GPT-2 124M attention settings.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim:  768,
		ContextLength: 1024,
		NumHeads:      12,
		Dropout:       0.1,
		QKVBias:       false,
		Seed:          123,
		Stride:        1024,
		BatchSize:     4,
		Encoding:      "r50k_base",
	}
}

// Validate checks if the configuration is valid and consistent.
func (c Config) Validate() error {
	var errs []error
	if c.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim))
	}
	if c.NumHeads <= 0 {
		errs = append(errs, fmt.Errorf("num_heads must be positive, got %d", c.NumHeads))
	} else if c.EmbeddingDim%c.NumHeads != 0 {
		errs = append(errs, fmt.Errorf("embedding_dim (%d) must be divisible by num_heads (%d)",
			c.EmbeddingDim, c.NumHeads))
	}
	if c.ContextLength <= 0 {
		errs = append(errs, fmt.Errorf("context_length must be positive, got %d", c.ContextLength))
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		errs = append(errs, fmt.Errorf("dropout must be in [0, 1), got %v", c.Dropout))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Stride <= 0 {
		errs = append(errs, fmt.Errorf("stride must be positive, got %d", c.Stride))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", attention.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// HeadDim returns the dimension per attention head.
func (c Config) HeadDim() int {
	return c.EmbeddingDim / c.NumHeads
}

// AttentionConfig maps c onto a square multi-head attention layer.
func (c Config) AttentionConfig() attention.MultiHeadAttentionConfig {
	return attention.MultiHeadAttentionConfig{
		DIn:           c.EmbeddingDim,
		DOut:          c.EmbeddingDim,
		ContextLength: c.ContextLength,
		Dropout:       c.Dropout,
		NumHeads:      c.NumHeads,
		QKVBias:       c.QKVBias,
		Seed:          c.Seed,
		Workers:       c.Workers,
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
