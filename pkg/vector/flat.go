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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kadirpekel/gasket/pkg/embedders"
)

// embedBatchSize bounds how many canonical strings go to the embedder
// per call during a build.
const embedBatchSize = 128

// FlatProvider is an exact L2 nearest-neighbor index over a dense
// float32 matrix. Exhaustive scan is fine at catalog sizes (up to a few
// hundred thousand records); anything substituted for it must keep
// recall@10 at 0.95 or better against this baseline.
//
// The matrix persists to embeddings.bin together with the corpus and
// model fingerprints, so a restart with an unchanged corpus skips the
// embedding pass entirely.
type FlatProvider struct {
	embedder embedders.Embedder
	cfg      FlatConfig

	matrix []float32 // row-major, n rows of dim values
	n      int
	dim    int
	built  bool
}

// FlatConfig configures the flat provider.
type FlatConfig struct {
	// PersistPath is the embeddings.bin location. Empty disables
	// persistence.
	PersistPath string

	// CorpusFingerprint is the hash of the canonical strings being
	// indexed. Stored on save, checked on load.
	CorpusFingerprint string
}

// NewFlatProvider creates an unbuilt flat provider.
func NewFlatProvider(cfg FlatConfig, embedder embedders.Embedder) *FlatProvider {
	return &FlatProvider{embedder: embedder, cfg: cfg}
}

func (p *FlatProvider) Name() string { return "flat" }

// Build loads the persisted matrix when its fingerprints match, and
// otherwise embeds every text and rewrites the artifact.
func (p *FlatProvider) Build(ctx context.Context, texts []string) error {
	if p.cfg.PersistPath != "" {
		if err := p.load(len(texts)); err == nil {
			slog.Info("Loaded persisted embeddings",
				"path", p.cfg.PersistPath,
				"records", p.n,
				"dimension", p.dim)
			p.built = true
			return nil
		} else if !os.IsNotExist(err) {
			slog.Warn("Persisted embeddings unusable; rebuilding",
				"path", p.cfg.PersistPath,
				"reason", err)
		}
	}

	start := time.Now()
	dim := 0
	matrix := make([]float32, 0, len(texts)*p.embedder.Dimension())
	for offset := 0; offset < len(texts); offset += embedBatchSize {
		end := offset + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts[offset:end])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		for i, vec := range vectors {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim {
				return fmt.Errorf("inconsistent embedding dimension at record %d: %d != %d",
					offset+i, len(vec), dim)
			}
			matrix = append(matrix, vec...)
		}
	}

	p.matrix = matrix
	p.n = len(texts)
	p.dim = dim
	p.built = true

	slog.Info("Built embedding matrix",
		"records", p.n,
		"dimension", p.dim,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if p.cfg.PersistPath != "" {
		if err := p.save(); err != nil {
			slog.Warn("Failed to persist embeddings", "path", p.cfg.PersistPath, "error", err)
		}
	}
	return nil
}

// Search embeds the query and scans the matrix. L2 distance d maps to a
// similarity of 1/(1+d), clipped to [0,1]. Ties break by corpus index.
func (p *FlatProvider) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if !p.built {
		return nil, fmt.Errorf("%w: index was never built", ErrEmbeddingUnavailable)
	}
	if k <= 0 || p.n == 0 {
		return nil, nil
	}

	qvec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(qvec) != p.dim {
		return nil, fmt.Errorf("query embedding dimension %d does not match index dimension %d",
			len(qvec), p.dim)
	}

	hits := make([]Hit, p.n)
	for i := 0; i < p.n; i++ {
		row := p.matrix[i*p.dim : (i+1)*p.dim]
		var sum float64
		for j, q := range qvec {
			d := float64(q) - float64(row[j])
			sum += d * d
		}
		dist := math.Sqrt(sum)
		hits[i] = Hit{Index: i, Score: clip01(1.0 / (1.0 + dist))}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (p *FlatProvider) Size() int { return p.n }

func (p *FlatProvider) Close() error { return nil }

// load reads embeddings.bin and verifies it belongs to this corpus and
// model.
func (p *FlatProvider) load(expectRecords int) error {
	snap, err := ReadEmbeddings(p.cfg.PersistPath)
	if err != nil {
		return err
	}
	if snap.CorpusFingerprint != p.cfg.CorpusFingerprint {
		return fmt.Errorf("%w: corpus changed", ErrFingerprintMismatch)
	}
	if snap.ModelFingerprint != p.embedder.Fingerprint() {
		return fmt.Errorf("%w: model changed", ErrFingerprintMismatch)
	}
	if snap.N != expectRecords {
		return fmt.Errorf("%w: record count changed", ErrFingerprintMismatch)
	}
	if p.embedder.Dimension() != 0 && snap.D != p.embedder.Dimension() {
		return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, snap.D, p.embedder.Dimension())
	}

	p.matrix = snap.Matrix
	p.n = snap.N
	p.dim = snap.D
	return nil
}

func (p *FlatProvider) save() error {
	if dir := filepath.Dir(p.cfg.PersistPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create persist directory: %w", err)
		}
	}
	return WriteEmbeddings(p.cfg.PersistPath, &EmbeddingsSnapshot{
		N:                 p.n,
		D:                 p.dim,
		CorpusFingerprint: p.cfg.CorpusFingerprint,
		ModelFingerprint:  p.embedder.Fingerprint(),
		Matrix:            p.matrix,
	})
}
