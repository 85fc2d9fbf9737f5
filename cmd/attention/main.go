// Command attention runs text through a LayerNorm, causal multi-head
// attention and GELU stack and reports the shape and statistics of the result.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gptcore/internal/logger"
	"gptcore/pkg/dataset"
	"gptcore/pkg/model"
)

const sampleText = `I HAD always thought Jack Gisburn rather a cheap genius--though a good fellow enough--so it was no great surprise to me to hear that, in the height of his glory, he had dropped his painting, married a rich widow, and established himself in a villa on the Riviera. ` + dataset.EndOfText + ` The height of his glory--that was what the women called it. I can hear Mrs. Gideon Thwing--his last Chicago sitter--deploring his unaccountable abdication.`

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to GPT-2 124M settings)")
	inputPath := flag.String("input", "", "Text file to process (built-in sample when empty)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "Log format: console or json")
	metricsAddr := flag.String("metrics", "", "Address to serve Prometheus metrics on, e.g. :9090")
	train := flag.Bool("train", false, "Enable dropout on the attention weights")
	contextLength := flag.Int("context-length", 0, "Override the configured context length (the built-in sample uses 32)")

	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	if err := run(*configPath, *inputPath, *metricsAddr, *contextLength, *train); err != nil {
		logger.Log.Error("attention run failed", "error", err)
		os.Exit(1)
	}
}

// sampleContextLength bounds the context when the built-in sample is used;
// the sample is far shorter than GPT-2's 1024-token context.
const sampleContextLength = 32

// newTokenizer loads the configured encoding.
var newTokenizer = func(encoding string) (dataset.Tokenizer, error) {
	tok, err := dataset.NewTikToken(encoding)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// buildConfig loads configPath over the defaults and applies the command line
// overrides. Stride never exceeds the context length after an override.
func buildConfig(configPath string, contextLength int, sample bool) (model.Config, error) {
	cfg := model.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = model.LoadConfig(configPath); err != nil {
			return model.Config{}, err
		}
	}

	if contextLength <= 0 && sample && cfg.ContextLength > sampleContextLength {
		contextLength = sampleContextLength
	}
	if contextLength > 0 {
		cfg.ContextLength = contextLength
		cfg.Stride = min(cfg.Stride, contextLength)
		if err := cfg.Validate(); err != nil {
			return model.Config{}, err
		}
	}
	return cfg, nil
}

func run(configPath, inputPath, metricsAddr string, contextLength int, train bool) error {
	cfg, err := buildConfig(configPath, contextLength, inputPath == "")
	if err != nil {
		return err
	}

	text := sampleText
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		text = string(data)
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Log.Info("metrics serving", "addr", metricsAddr, "path", "/metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("metrics server error", "error", err)
			}
		}()
	}

	tok, err := newTokenizer(cfg.Encoding)
	if err != nil {
		return err
	}

	logger.Log.Info("configuration",
		"embedding_dim", cfg.EmbeddingDim, "context_length", cfg.ContextLength,
		"num_heads", cfg.NumHeads, "head_dim", cfg.HeadDim(), "dropout", cfg.Dropout,
		"qkv_bias", cfg.QKVBias, "encoding", cfg.Encoding, "train", train)

	summaries, err := process(cfg, text, tok, train)
	if err != nil {
		return err
	}
	for i, s := range summaries {
		logger.Log.Info("batch processed",
			"batch", i, "shape", fmt.Sprint(s.Shape),
			"mean", s.Mean, "std", s.Std, "min", s.Min, "max", s.Max)
	}
	logger.Log.Info("done", "batches", len(summaries))
	return nil
}
