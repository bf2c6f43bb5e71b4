// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector provides the semantic index: nearest-neighbor search
// over canonical-string embeddings, behind a pluggable Provider.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/embedders"
)

var (
	// ErrEmbeddingUnavailable indicates the embedding backend failed;
	// the router falls back to lexical retrieval.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrFingerprintMismatch indicates persisted embeddings belong to a
	// different corpus or embedding model.
	ErrFingerprintMismatch = errors.New("persisted embeddings fingerprint mismatch")

	// ErrDimensionMismatch indicates persisted embeddings have a
	// different dimension than the configured model.
	ErrDimensionMismatch = errors.New("persisted embeddings dimension mismatch")
)

// Hit is a scored corpus index. Score is normalized to [0,1]; ties are
// broken by corpus index.
type Hit struct {
	Index int
	Score float64
}

// Provider indexes the canonical strings of the corpus and answers
// nearest-neighbor queries. Implementations are immutable after Build
// and safe for concurrent Search.
type Provider interface {
	Name() string

	// Build embeds texts (in corpus order) and constructs the index.
	Build(ctx context.Context, texts []string) error

	// Search embeds the query once and returns the k nearest entries.
	Search(ctx context.Context, query string, k int) ([]Hit, error)

	// Size is the number of indexed entries.
	Size() int

	Close() error
}

// NewProvider creates a vector provider from configuration. The corpus
// fingerprint gates persisted-artifact reuse.
func NewProvider(cfg *config.VectorConfig, embedder embedders.Embedder, corpusFingerprint string) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector config cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	switch cfg.Provider {
	case "flat", "":
		return NewFlatProvider(FlatConfig{
			PersistPath:       cfg.PersistPath,
			CorpusFingerprint: corpusFingerprint,
		}, embedder), nil
	case "chromem":
		return NewChromemProvider(ChromemConfig{
			PersistPath:       cfg.PersistPath,
			Compress:          cfg.Compress,
			CorpusFingerprint: corpusFingerprint,
		}, embedder)
	default:
		return nil, fmt.Errorf("unknown vector provider: %q", cfg.Provider)
	}
}

func clip01(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
