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
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/lexical"
	"github.com/kadirpekel/gasket/pkg/nlu"
	"github.com/kadirpekel/gasket/pkg/observability"
	"github.com/kadirpekel/gasket/pkg/vector"
)

const (
	sourceField    = "field"
	sourceLexical  = "lexical"
	sourceSemantic = "semantic"
)

// router dispatches an analyzed query to the index its strategy names
// and applies the entity-derived post-filters to the merged hits.
type router struct {
	corpus  *catalog.Corpus
	lexical *lexical.Index
	vector  vector.Provider
	metrics observability.Metrics
}

func newRouter(corpus *catalog.Corpus, idx *lexical.Index, provider vector.Provider, metrics observability.Metrics) *router {
	return &router{corpus: corpus, lexical: idx, vector: provider, metrics: metrics}
}

func (r *router) route(ctx context.Context, u nlu.Understanding, k int) (*SearchResponse, error) {
	resp := &SearchResponse{Understanding: u}

	// Indexes are oversampled so post-filtering still fills k results.
	fetch := 2 * k

	var results []SearchResult
	switch u.Strategy {
	case nlu.StrategyField:
		results = r.routeField(u, fetch, resp)
	case nlu.StrategyLexical:
		results = r.fromLexical(r.lexical.Fuzzy(u.Query, fetch))
	case nlu.StrategySemantic:
		results = r.routeSemantic(ctx, u, fetch, resp)
	case nlu.StrategyHybrid:
		results = r.routeHybrid(ctx, u, fetch, resp)
	default:
		return nil, fmt.Errorf("unknown retrieval strategy: %s", u.Strategy)
	}

	filtered := applyFilters(results, u)
	if len(filtered) == 0 && len(results) > 0 {
		resp.Suggestions = appendSuggestion(resp.Suggestions,
			"No results satisfied the price or stock constraints; try relaxing them.")
	}
	if model := u.Entities[nlu.EntityModel]; model != "" && len(filtered) > 0 {
		resp.Suggestions = appendSuggestion(resp.Suggestions,
			fmt.Sprintf("Matched vehicle model %s; add a system name to narrow further.", model))
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		return filtered[i].CorpusIndex < filtered[j].CorpusIndex
	})
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	resp.Results = filtered
	return resp, nil
}

// routeField serves exact part-number lookups; a miss falls back to a
// fuzzy lexical pass so the caller still gets candidates.
func (r *router) routeField(u nlu.Understanding, fetch int, resp *SearchResponse) []SearchResult {
	pn := u.Entities[nlu.EntityPartNumber]
	hits := r.lexical.Exact(catalog.FieldPartNumber, pn)
	if len(hits) > 0 {
		results := make([]SearchResult, 0, len(hits))
		for _, h := range hits {
			results = append(results, SearchResult{
				Record:      r.corpus.Record(h.Index),
				Score:       1.0,
				Sources:     []string{sourceField},
				CorpusIndex: h.Index,
			})
		}
		return results
	}

	resp.Suggestions = appendSuggestion(resp.Suggestions,
		fmt.Sprintf("No part with number %s; showing closest lexical matches.", pn))
	return r.fromLexical(r.lexical.Fuzzy(u.Query, fetch))
}

// routeSemantic queries the vector index, degrading to lexical-only
// when the embedding backend is unreachable.
func (r *router) routeSemantic(ctx context.Context, u nlu.Understanding, fetch int, resp *SearchResponse) []SearchResult {
	hits, err := r.vector.Search(ctx, u.Query, fetch)
	if err != nil {
		if !errors.Is(err, vector.ErrEmbeddingUnavailable) {
			slog.Warn("Semantic search failed", "error", err)
		}
		return r.degrade(ctx, u, fetch, resp)
	}
	return r.fromVector(hits)
}

// routeHybrid fans out to both indexes and merges hits per part
// number, keeping the maximum score and the union of sources.
func (r *router) routeHybrid(ctx context.Context, u nlu.Understanding, fetch int, resp *SearchResponse) []SearchResult {
	var (
		lexHits []lexical.Hit
		vecHits []vector.Hit
		vecErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexHits = r.lexical.Fuzzy(u.Query, fetch)
		return nil
	})
	g.Go(func() error {
		vecHits, vecErr = r.vector.Search(gctx, u.Query, fetch)
		return nil
	})
	_ = g.Wait()

	if vecErr != nil {
		if !errors.Is(vecErr, vector.ErrEmbeddingUnavailable) {
			slog.Warn("Semantic search failed", "error", vecErr)
		}
		resp.Degraded = true
		resp.Suggestions = appendSuggestion(resp.Suggestions,
			"Semantic ranking is unavailable; results come from keyword matching only.")
		r.metrics.RecordDegradedSearch(ctx)
		return r.fromLexical(lexHits)
	}

	return r.merge(r.fromLexical(lexHits), r.fromVector(vecHits))
}

func (r *router) degrade(ctx context.Context, u nlu.Understanding, fetch int, resp *SearchResponse) []SearchResult {
	resp.Degraded = true
	resp.Suggestions = appendSuggestion(resp.Suggestions,
		"Semantic ranking is unavailable; results come from keyword matching only.")
	r.metrics.RecordDegradedSearch(ctx)
	return r.fromLexical(r.lexical.Fuzzy(u.Query, fetch))
}

func (r *router) fromLexical(hits []lexical.Hit) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			Record:      r.corpus.Record(h.Index),
			Score:       h.Score,
			Sources:     []string{sourceLexical},
			CorpusIndex: h.Index,
		})
	}
	return results
}

func (r *router) fromVector(hits []vector.Hit) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			Record:      r.corpus.Record(h.Index),
			Score:       h.Score,
			Sources:     []string{sourceSemantic},
			CorpusIndex: h.Index,
		})
	}
	return results
}

// merge unions two result lists per part number. A record hit by both
// indexes keeps its best score and lists both sources. Records without
// a part number are keyed by corpus index instead.
func (r *router) merge(a, b []SearchResult) []SearchResult {
	merged := make([]SearchResult, 0, len(a)+len(b))
	byKey := make(map[string]int, len(a)+len(b))

	add := func(res SearchResult) {
		key := res.Record.PartNumber()
		if key == "" {
			key = "#" + strconv.Itoa(res.CorpusIndex)
		}
		if i, ok := byKey[key]; ok {
			if res.Score > merged[i].Score {
				merged[i].Score = res.Score
			}
			merged[i].Sources = unionSources(merged[i].Sources, res.Sources)
			return
		}
		byKey[key] = len(merged)
		merged = append(merged, res)
	}

	for _, res := range a {
		add(res)
	}
	for _, res := range b {
		add(res)
	}
	return merged
}

func unionSources(a, b []string) []string {
	for _, s := range b {
		found := false
		for _, t := range a {
			if s == t {
				found = true
				break
			}
		}
		if !found {
			a = append(a, s)
		}
	}
	return a
}

// applyFilters drops results outside the price and stock constraints
// the query expressed. Strict comparators reject the boundary value
// itself, so "under 2000" drops a record costing exactly 2000.
func applyFilters(results []SearchResult, u nlu.Understanding) []SearchResult {
	priceMax, hasMax := parseFloatEntity(u.Entities, nlu.EntityPriceMax)
	priceMin, hasMin := parseFloatEntity(u.Entities, nlu.EntityPriceMin)
	stockMin, hasStock := parseIntEntity(u.Entities, nlu.EntityStockThreshold)
	if !hasMax && !hasMin && !hasStock {
		return results
	}

	kept := results[:0:0]
	for _, res := range results {
		cost := res.Record.Cost()
		if hasMax && (cost > priceMax || (u.PriceMaxExclusive && cost == priceMax)) {
			continue
		}
		if hasMin && (cost < priceMin || (u.PriceMinExclusive && cost == priceMin)) {
			continue
		}
		if hasStock && res.Record.Stock() < stockMin {
			continue
		}
		kept = append(kept, res)
	}
	return kept
}

func parseFloatEntity(entities map[nlu.EntityKind]string, kind nlu.EntityKind) (float64, bool) {
	raw, ok := entities[kind]
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseIntEntity(entities map[nlu.EntityKind]string, kind nlu.EntityKind) (int, bool) {
	raw, ok := entities[kind]
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
