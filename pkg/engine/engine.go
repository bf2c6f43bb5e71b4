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

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/embedders"
	"github.com/kadirpekel/gasket/pkg/lexical"
	"github.com/kadirpekel/gasket/pkg/llms"
	"github.com/kadirpekel/gasket/pkg/nlu"
	"github.com/kadirpekel/gasket/pkg/observability"
	"github.com/kadirpekel/gasket/pkg/rag"
	"github.com/kadirpekel/gasket/pkg/vector"
)

// Dependencies are the injectable collaborators of an Engine. Tests
// supply stubs; Bootstrap wires production implementations.
type Dependencies struct {
	Corpus        *catalog.Corpus
	Taxonomy      *catalog.Taxonomy
	Vector        vector.Provider
	LLM           llms.LLM
	Observability *observability.Manager
}

// Engine is the query front door. It analyzes incoming text, routes it
// to the lexical or semantic index, caches recent responses, and
// synthesizes grounded answers.
type Engine struct {
	cfg          *config.Config
	corpus       *catalog.Corpus
	analyzer     *nlu.Analyzer
	router       *router
	orchestrator *rag.Orchestrator
	llm          llms.LLM
	cache        *queryCache
	obs          *observability.Manager
}

// New assembles an engine from pre-built dependencies. The LLM is
// optional; without one Answer returns llms.ErrLLMUnavailable.
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Corpus == nil {
		return nil, fmt.Errorf("corpus is required")
	}
	if deps.Vector == nil {
		return nil, fmt.Errorf("vector provider is required")
	}

	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoopManager()
	}

	cache, err := newQueryCache(cfg.Engine.CacheSize)
	if err != nil {
		return nil, err
	}

	systems := deps.Corpus.Systems()
	if deps.Taxonomy != nil {
		systems = mergeVocab(systems, deps.Taxonomy.Systems)
	}
	analyzer := nlu.New(nlu.Vocabulary{
		Models:  deps.Corpus.Models(),
		Systems: systems,
	})

	e := &Engine{
		cfg:      cfg,
		corpus:   deps.Corpus,
		analyzer: analyzer,
		router:   newRouter(deps.Corpus, lexical.New(deps.Corpus), deps.Vector, obs.Metrics),
		cache:    cache,
		obs:      obs,
	}

	if deps.LLM != nil {
		orch, err := rag.NewOrchestrator(deps.LLM, cfg.RAG)
		if err != nil {
			return nil, err
		}
		e.orchestrator = orch
		e.llm = deps.LLM
	}

	return e, nil
}

// Bootstrap loads the corpus and builds every production dependency
// from configuration, then returns a ready engine. The vector index is
// built (or restored from its persisted artifact) before returning.
func Bootstrap(ctx context.Context, cfg *config.Config, obs *observability.Manager) (*Engine, error) {
	corpus, err := catalog.Load(cfg.Corpus.Path)
	if err != nil {
		return nil, err
	}
	stats := corpus.Stats()
	slog.Info("Corpus loaded",
		"records", corpus.Len(),
		"malformed", stats.Malformed,
		"duplicates", stats.Duplicates)

	var taxonomy *catalog.Taxonomy
	if cfg.Corpus.TaxonomyPath != "" {
		if taxonomy, err = catalog.LoadTaxonomy(cfg.Corpus.TaxonomyPath); err != nil {
			// The corpus-derived vocabulary stands alone.
			slog.Warn("Failed to load taxonomy", "path", cfg.Corpus.TaxonomyPath, "error", err)
		} else {
			slog.Info("Taxonomy loaded", "systems", len(taxonomy.Systems))
		}
	}

	embedder, err := embedders.New(&cfg.Embedder)
	if err != nil {
		return nil, err
	}

	provider, err := vector.NewProvider(&cfg.Vector, embedder, corpus.Fingerprint())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := provider.Build(ctx, corpus.CanonicalStrings()); err != nil {
		// A dead embedding backend must not take the whole engine down;
		// searches degrade to lexical-only until it recovers.
		slog.Warn("Vector index build failed; semantic search degraded", "error", err)
	} else {
		slog.Info("Vector index ready",
			"provider", provider.Name(),
			"entries", provider.Size(),
			"took", time.Since(start).Round(time.Millisecond))
	}

	var llm llms.LLM
	if cfg.LLM.Type != "" {
		if llm, err = llms.New(&cfg.LLM); err != nil {
			return nil, err
		}
	}

	return New(cfg, Dependencies{
		Corpus:        corpus,
		Taxonomy:      taxonomy,
		Vector:        provider,
		LLM:           llm,
		Observability: obs,
	})
}

func mergeVocab(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

// Search analyzes the query, routes it, and returns scored results.
// k <= 0 returns empty results; callers wanting a default pass the
// configured one. Blank queries return an empty response with a usage
// hint instead of an error.
func (e *Engine) Search(ctx context.Context, query string, k int) (*SearchResponse, error) {
	if k <= 0 {
		return &SearchResponse{
			Understanding: e.analyzer.Understand(query),
		}, nil
	}

	if strings.TrimSpace(query) == "" {
		return &SearchResponse{
			Understanding: nlu.Understanding{Intent: nlu.IntentGeneral, Strategy: nlu.StrategyLexical},
			Suggestions: []string{
				"Enter a part number, a part name, or a description to search the catalog.",
			},
		}, nil
	}

	u := e.analyzer.Understand(query)

	if cached, ok := e.cache.get(query, k); ok {
		e.obs.Metrics.RecordCacheHit(ctx)
		resp := *cached
		resp.Understanding = u
		resp.Cached = true
		return &resp, nil
	}
	e.obs.Metrics.RecordCacheMiss(ctx)

	ctx, span := e.obs.Tracer.Start(ctx, "engine.search")
	defer span.End()

	start := time.Now()
	resp, err := e.router.route(ctx, u, k)
	if err != nil {
		e.obs.Metrics.RecordSearchError(ctx, string(u.Strategy))
		return nil, err
	}
	e.obs.Metrics.RecordSearch(ctx, string(u.Strategy), time.Since(start).Seconds(), len(resp.Results))

	slog.Debug("Search routed",
		"intent", u.Intent,
		"strategy", u.Strategy,
		"results", len(resp.Results),
		"degraded", resp.Degraded,
		"took", time.Since(start).Round(time.Millisecond))

	// A degraded response is not cached, so the next identical query
	// retries the embedding backend instead of serving a stale
	// lexical-only result.
	if !resp.Degraded {
		e.cache.put(query, k, resp)
	}
	return resp, nil
}

// Answer retrieves context for the query and synthesizes a grounded
// natural-language answer. Blank queries and empty retrievals never
// reach the LLM. An unavailable LLM does not fail the call: the
// response carries the raw retrieval results and a degraded note.
// k <= 0 selects the configured default.
func (e *Engine) Answer(ctx context.Context, query string, k int) (*AnswerResponse, error) {
	if k <= 0 {
		k = e.cfg.Engine.DefaultTopK
	}
	search, err := e.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	if e.orchestrator == nil {
		return degradedAnswer(search), nil
	}

	records := make([]catalog.Record, 0, len(search.Results))
	for _, res := range search.Results {
		records = append(records, res.Record)
	}

	ctx, span := e.obs.Tracer.Start(ctx, "engine.answer")
	defer span.End()

	start := time.Now()
	answer, err := e.orchestrator.Answer(ctx, query, records)
	e.obs.Metrics.RecordLLMRequest(ctx, time.Since(start).Seconds(), err != nil)
	if err != nil {
		if errors.Is(err, llms.ErrLLMUnavailable) {
			slog.Warn("Answer synthesis degraded to raw retrieval", "error", err)
			return degradedAnswer(search), nil
		}
		return nil, err
	}

	return &AnswerResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
		Search:  search,
	}, nil
}

func degradedAnswer(search *SearchResponse) *AnswerResponse {
	sources := make([]string, 0, len(search.Results))
	for _, res := range search.Results {
		sources = append(sources, res.Record.PartNumber())
	}
	return &AnswerResponse{
		Answer:   "Answer synthesis is unavailable right now; here are the matching catalog records instead.",
		Sources:  sources,
		Search:   search,
		Degraded: true,
	}
}

// ReloadCache drops every cached query response. Persisted embeddings
// are untouched; they are invalidated by fingerprints, not by time.
func (e *Engine) ReloadCache() {
	e.cache.purge()
	slog.Info("Query cache purged")
}

// Stats reports engine counters for the health endpoint.
type Stats struct {
	CorpusSize    int    `json:"corpus_size"`
	VectorSize    int    `json:"vector_size"`
	VectorName    string `json:"vector_provider"`
	CachedQueries int    `json:"cached_queries"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		CorpusSize:    e.corpus.Len(),
		VectorSize:    e.router.vector.Size(),
		VectorName:    e.router.vector.Name(),
		CachedQueries: e.cache.len(),
	}
}

// Close releases the vector provider and LLM resources.
func (e *Engine) Close() error {
	if e.llm != nil {
		if err := e.llm.Close(); err != nil {
			slog.Warn("Failed to close llm client", "error", err)
		}
	}
	return e.router.vector.Close()
}
