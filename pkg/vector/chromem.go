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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/gasket/pkg/embedders"
)

const chromemCollectionPrefix = "parts-"

// ChromemProvider backs the semantic index with chromem-go: embedded,
// pure Go, cosine similarity. An alternative to the flat provider for
// deployments that want gob persistence instead of embeddings.bin.
// Cosine scores are already normalized; they are clipped to [0,1].
//
// The collection name carries a hash of the corpus and embedding-model
// fingerprints, so a persisted store built from a different corpus or
// model is discarded instead of reused.
type ChromemProvider struct {
	db         *chromem.DB
	embedder   embedders.Embedder
	cfg        ChromemConfig
	collection *chromem.Collection
	size       int
}

// ChromemConfig configures the chromem provider.
type ChromemConfig struct {
	// PersistPath is a directory for file persistence. Empty keeps the
	// store in memory only.
	PersistPath string

	// Compress enables gzip compression for persistence.
	Compress bool

	// CorpusFingerprint is the hash of the canonical strings being
	// indexed. Gates reuse of a persisted collection.
	CorpusFingerprint string
}

// NewChromemProvider creates a chromem-backed provider. The collection
// is selected during Build, once the record count is known.
func NewChromemProvider(cfg ChromemConfig, embedder embedders.Embedder) (*ChromemProvider, error) {
	var db *chromem.DB
	var err error

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemProvider{db: db, embedder: embedder, cfg: cfg}, nil
}

func (p *ChromemProvider) Name() string { return "chromem" }

// collectionName folds the corpus and model fingerprints into the
// collection name.
func (p *ChromemProvider) collectionName() string {
	sum := sha256.Sum256([]byte(p.cfg.CorpusFingerprint + "|" + p.embedder.Fingerprint()))
	return chromemCollectionPrefix + hex.EncodeToString(sum[:6])
}

// Build embeds all texts and upserts them keyed by corpus index. A
// persistent collection is reused only when its name matches the
// current corpus and model fingerprints and it holds every record;
// collections with stale fingerprints are dropped.
func (p *ChromemProvider) Build(ctx context.Context, texts []string) error {
	name := p.collectionName()

	for existing := range p.db.ListCollections() {
		if existing != name && strings.HasPrefix(existing, chromemCollectionPrefix) {
			if err := p.db.DeleteCollection(existing); err != nil {
				return fmt.Errorf("failed to drop stale collection %s: %w", existing, err)
			}
			slog.Info("Dropped stale chromem collection", "collection", existing)
		}
	}

	// Vectors arrive pre-computed; the embedding func must never run.
	identity := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}
	col, err := p.db.GetOrCreateCollection(name, nil, identity)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if col.Count() == len(texts) && len(texts) > 0 {
		p.collection = col
		p.size = len(texts)
		slog.Info("Reusing persisted chromem collection",
			"collection", name,
			"records", p.size)
		return nil
	}

	docs := make([]chromem.Document, len(texts))
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
			idx := offset + i
			docs[idx] = chromem.Document{
				ID:        strconv.Itoa(idx),
				Content:   texts[idx],
				Embedding: vec,
			}
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}
	p.collection = col
	p.size = len(texts)
	slog.Info("Built chromem collection", "collection", name, "records", p.size)
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if p.collection == nil {
		return nil, fmt.Errorf("%w: index was never built", ErrEmbeddingUnavailable)
	}
	if k <= 0 || p.size == 0 {
		return nil, nil
	}
	if k > p.size {
		k = p.size
	}

	qvec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	results, err := p.collection.QueryEmbedding(ctx, qvec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", r.ID, err)
		}
		hits = append(hits, Hit{Index: idx, Score: clip01(float64(r.Similarity))})
	}
	return hits, nil
}

func (p *ChromemProvider) Size() int { return p.size }

func (p *ChromemProvider) Close() error { return nil }
