// Package embedders wraps external embedding models behind one
// interface. The engine treats the model as an opaque texts-to-matrix
// callable; the fingerprint ties persisted embeddings to the model that
// produced them.
package embedders

import (
	"context"
	"fmt"

	"github.com/kadirpekel/gasket/pkg/config"
)

type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the vector length the model produces.
	Dimension() int

	// Fingerprint identifies the model (type + model id). Persisted
	// embeddings store it; a mismatch forces a rebuild.
	Fingerprint() string

	Close() error
}

// New creates an embedder from configuration.
func New(cfg *config.EmbedderConfig) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}
	switch cfg.Type {
	case "ollama":
		return NewOllamaEmbedder(cfg), nil
	case "openai":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
}
