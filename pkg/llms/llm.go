// Package llms wraps answer-synthesis models behind a vendor-agnostic
// interface: a prompt goes in under a deadline, text comes out.
package llms

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/gasket/pkg/config"
)

// ErrLLMUnavailable indicates the model could not produce an answer:
// transport failure, non-OK status, or deadline. Callers decide whether
// to fall back to raw retrieval results.
var ErrLLMUnavailable = errors.New("llm unavailable")

type LLM interface {
	// Generate produces text for the prompt. The context deadline
	// cancels the call; failures wrap ErrLLMUnavailable.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier, used for token counting.
	Model() string

	Close() error
}

// New creates an LLM client from configuration.
func New(cfg *config.LLMConfig) (LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}
	switch cfg.Type {
	case "ollama":
		return NewOllamaLLM(cfg), nil
	case "openai":
		return NewOpenAILLM(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm type: %s", cfg.Type)
	}
}
