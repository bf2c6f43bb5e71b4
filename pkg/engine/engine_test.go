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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/llms"
	"github.com/kadirpekel/gasket/pkg/nlu"
	"github.com/kadirpekel/gasket/pkg/vector"
)

// stubProvider serves canned semantic hits, or fails like a dead
// embedding backend.
type stubProvider struct {
	hits []vector.Hit
	fail bool
	size int
}

func (s *stubProvider) Name() string                          { return "stub" }
func (s *stubProvider) Build(context.Context, []string) error { return nil }
func (s *stubProvider) Size() int                             { return s.size }
func (s *stubProvider) Close() error                          { return nil }

func (s *stubProvider) Search(_ context.Context, _ string, k int) ([]vector.Hit, error) {
	if s.fail {
		return nil, fmt.Errorf("%w: connection refused", vector.ErrEmbeddingUnavailable)
	}
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Generate(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}
func (s *stubLLM) Model() string { return "gpt-4o" }
func (s *stubLLM) Close() error  { return nil }

func testCorpus(t *testing.T) *catalog.Corpus {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parts.jsonl")
	content := `{"part_number":"PN-00500","part_name":"Air Filter","part_description":"Paper element air filter","system":"Engine","cost":900,"stock":10,"compatible_models":["Thar"]}
{"part_number":"BRK-00123","part_name":"Brake Pad Set","part_description":"Front ceramic brake pads","system":"Braking System","manufacturer":"Brembo","cost":2500,"stock":4,"compatible_models":["Thar","Scorpio"]}
{"part_number":"CLT-00200","part_name":"Clutch Plate","part_description":"Organic friction clutch plate","system":"Transmission","cost":1450,"stock":0,"compatible_models":["Marazzo"]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	corpus, err := catalog.Load(path)
	require.NoError(t, err)
	return corpus
}

func newTestEngine(t *testing.T, provider vector.Provider, llm llms.LLM) *Engine {
	t.Helper()
	corpus := testCorpus(t)
	cfg := config.Default("unused")
	eng, err := New(cfg, Dependencies{
		Corpus: corpus,
		Vector: provider,
		LLM:    llm,
	})
	require.NoError(t, err)
	return eng
}

func TestSearchExactLookup(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	resp, err := eng.Search(context.Background(), "show me PN-00500", 10)
	require.NoError(t, err)

	assert.Equal(t, nlu.IntentExactLookup, resp.Understanding.Intent)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "PN-00500", resp.Results[0].Record.PartNumber())
	assert.Equal(t, 1.0, resp.Results[0].Score)
	assert.Equal(t, []string{"field"}, resp.Results[0].Sources)
	assert.Empty(t, resp.Suggestions)
}

func TestSearchExactLookupMissFallsBack(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	resp, err := eng.Search(context.Background(), "brake pads ZZZ-99999", 10)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Suggestions)
	assert.Contains(t, resp.Suggestions[0], "ZZZ-99999")
	// The fuzzy retry still surfaces the brake pad record.
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "BRK-00123", resp.Results[0].Record.PartNumber())
	assert.Equal(t, []string{"lexical"}, resp.Results[0].Sources)
}

func TestSearchHybridMerge(t *testing.T) {
	// The semantic index ranks the brake pad record higher than any
	// lexical score can reach.
	provider := &stubProvider{hits: []vector.Hit{
		{Index: 1, Score: 0.95},
		{Index: 2, Score: 0.30},
	}}
	eng := newTestEngine(t, provider, nil)

	resp, err := eng.Search(context.Background(), "brake pads for Thar", 10)
	require.NoError(t, err)

	assert.Equal(t, nlu.StrategyHybrid, resp.Understanding.Strategy)
	require.NotEmpty(t, resp.Results)

	// The brake pad record is hit by both indexes: one merged entry,
	// best score, both sources.
	top := resp.Results[0]
	assert.Equal(t, "BRK-00123", top.Record.PartNumber())
	assert.GreaterOrEqual(t, top.Score, 0.95, "merge keeps the maximum score")
	assert.ElementsMatch(t, []string{"lexical", "semantic"}, top.Sources)

	// The clutch record only the semantic index found still appears.
	var clutch *SearchResult
	for i := range resp.Results {
		if resp.Results[i].Record.PartNumber() == "CLT-00200" {
			clutch = &resp.Results[i]
		}
	}
	require.NotNil(t, clutch)
	assert.Equal(t, 0.30, clutch.Score)
	assert.Equal(t, []string{"semantic"}, clutch.Sources)

	seen := map[string]int{}
	for _, res := range resp.Results {
		seen[res.Record.PartNumber()]++
	}
	for pn, n := range seen {
		assert.Equal(t, 1, n, "part %s merged into one entry", pn)
	}
	assert.False(t, resp.Degraded)
}

func TestSearchHybridDegradesWithoutEmbeddings(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{fail: true}, nil)

	resp, err := eng.Search(context.Background(), "brake pads for Thar", 10)
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Suggestions)
	assert.Contains(t, resp.Suggestions[0], "keyword matching")
	require.NotEmpty(t, resp.Results)
	for _, res := range resp.Results {
		assert.Equal(t, []string{"lexical"}, res.Sources)
	}
}

func TestSearchSemanticStrategy(t *testing.T) {
	provider := &stubProvider{hits: []vector.Hit{
		{Index: 1, Score: 0.92}, // Brake Pad Set
		{Index: 2, Score: 0.41}, // Clutch Plate
	}}
	eng := newTestEngine(t, provider, nil)

	resp, err := eng.Search(context.Background(), "alternatives to Brembo brake pad", 10)
	require.NoError(t, err)

	assert.Equal(t, nlu.IntentSimilarity, resp.Understanding.Intent)
	assert.Equal(t, nlu.StrategySemantic, resp.Understanding.Strategy)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "BRK-00123", resp.Results[0].Record.PartNumber())
	assert.Equal(t, []string{"semantic"}, resp.Results[0].Sources)
	assert.Equal(t, "CLT-00200", resp.Results[1].Record.PartNumber())
}

func TestSearchSemanticDegradesWithoutEmbeddings(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{fail: true}, nil)

	resp, err := eng.Search(context.Background(), "similar to ceramic brake pads", 10)
	require.NoError(t, err)

	assert.Equal(t, nlu.StrategySemantic, resp.Understanding.Strategy)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)
}

// downEmbedder refuses every call, like a dead embedding backend.
type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("connection refused")
}
func (downEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("connection refused")
}
func (downEmbedder) Dimension() int      { return 2 }
func (downEmbedder) Fingerprint() string { return "down/unit" }
func (downEmbedder) Close() error        { return nil }

func TestSearchDegradesWhenIndexNeverBuilt(t *testing.T) {
	corpus := testCorpus(t)

	// Startup continues past a failed index build; every semantic or
	// hybrid search afterwards must still report degraded mode.
	provider := vector.NewFlatProvider(vector.FlatConfig{}, downEmbedder{})
	require.Error(t, provider.Build(context.Background(), corpus.CanonicalStrings()))

	eng, err := New(config.Default("unused"), Dependencies{Corpus: corpus, Vector: provider})
	require.NoError(t, err)

	resp, err := eng.Search(context.Background(), "radiator for Marazzo", 10)
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Suggestions)
	assert.Contains(t, resp.Suggestions[0], "keyword matching")
}

func TestSearchPriceFilter(t *testing.T) {
	provider := &stubProvider{hits: []vector.Hit{
		{Index: 1, Score: 0.9}, // Brake Pad Set, 2500
		{Index: 2, Score: 0.8}, // Clutch Plate, 1450
	}}
	eng := newTestEngine(t, provider, nil)

	resp, err := eng.Search(context.Background(), "clutch plates under 2000", 10)
	require.NoError(t, err)

	assert.Equal(t, nlu.IntentFilteredSearch, resp.Understanding.Intent)
	require.NotEmpty(t, resp.Results)
	for _, res := range resp.Results {
		assert.Less(t, res.Record.Cost(), 2000.0)
	}
}

func TestSearchPriceFilterBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.jsonl")
	content := `{"part_number":"CLT-00300","part_name":"Clutch Plate","part_description":"Heavy duty clutch plate","system":"Transmission","cost":2000,"stock":3}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	corpus, err := catalog.Load(path)
	require.NoError(t, err)

	eng, err := New(config.Default("unused"), Dependencies{Corpus: corpus, Vector: &stubProvider{}})
	require.NoError(t, err)

	// "under" is strict: a record at exactly the cap is dropped.
	resp, err := eng.Search(context.Background(), "clutch plates under 2000", 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	require.NotEmpty(t, resp.Suggestions)
	assert.Contains(t, resp.Suggestions[0], "relaxing")

	// "at most" keeps the boundary value.
	resp, err = eng.Search(context.Background(), "clutch plates at most 2000", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "CLT-00300", resp.Results[0].Record.PartNumber())
}

func TestSearchStockFilter(t *testing.T) {
	provider := &stubProvider{hits: []vector.Hit{
		{Index: 0, Score: 0.9}, // stock 10
		{Index: 2, Score: 0.8}, // stock 0
	}}
	eng := newTestEngine(t, provider, nil)

	resp, err := eng.Search(context.Background(), "filters in stock", 10)
	require.NoError(t, err)

	for _, res := range resp.Results {
		assert.GreaterOrEqual(t, res.Record.Stock(), 1)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	for _, q := range []string{"", "   "} {
		resp, err := eng.Search(context.Background(), q, 10)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.NotEmpty(t, resp.Suggestions)
	}
}

func TestSearchOrderingDeterministic(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	first, err := eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)
	eng.ReloadCache()
	second, err := eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
}

func TestSearchDegradedNotCached(t *testing.T) {
	provider := &stubProvider{fail: true}
	eng := newTestEngine(t, provider, nil)

	resp, err := eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)
	require.True(t, resp.Degraded)

	// Once the backend recovers, the same query must not be pinned to
	// the lexical-only result.
	provider.fail = false
	provider.hits = []vector.Hit{{Index: 1, Score: 0.9}}
	resp, err = eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.False(t, resp.Degraded)

	// The healthy response caches as usual.
	resp, err = eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
}

func TestSearchCache(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	resp, err := eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)
	assert.False(t, resp.Cached)

	// Same query modulo case and whitespace hits the cache.
	cached, err := eng.Search(context.Background(), "  Brake   PADS ", 10)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, resp.Results, cached.Results)

	// A different k is a different entry.
	other, err := eng.Search(context.Background(), "brake pads", 2)
	require.NoError(t, err)
	assert.False(t, other.Cached)

	eng.ReloadCache()
	fresh, err := eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
}

func TestSearchZeroK(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	for _, k := range []int{0, -5} {
		resp, err := eng.Search(context.Background(), "brake pads", k)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		// The understanding is still computed.
		assert.Equal(t, nlu.IntentGeneral, resp.Understanding.Intent)
	}
}

func TestAnswer(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, &stubLLM{reply: "The Brake Pad Set BRK-00123 fits the Thar."})

	resp, err := eng.Answer(context.Background(), "brake pads for Thar", 0)
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "BRK-00123")
	assert.Contains(t, resp.Sources, "BRK-00123")
	require.NotNil(t, resp.Search)
}

func TestAnswerWithoutLLM(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, nil)

	resp, err := eng.Answer(context.Background(), "brake pads", 0)
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.Sources, "BRK-00123")
	require.NotNil(t, resp.Search)
}

func TestAnswerLLMFailureDegrades(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{}, &stubLLM{
		err: fmt.Errorf("%w: connection refused", llms.ErrLLMUnavailable),
	})

	resp, err := eng.Answer(context.Background(), "brake pads", 0)
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Search.Results)
}

func TestStats(t *testing.T) {
	eng := newTestEngine(t, &stubProvider{size: 3}, nil)

	_, err := eng.Search(context.Background(), "brake pads", 10)
	require.NoError(t, err)

	stats := eng.Stats()
	assert.Equal(t, 3, stats.CorpusSize)
	assert.Equal(t, 3, stats.VectorSize)
	assert.Equal(t, "stub", stats.VectorName)
	assert.Equal(t, 1, stats.CachedQueries)
}

func TestTaxonomyAugmentsVocabulary(t *testing.T) {
	corpus := testCorpus(t)
	cfg := config.Default("unused")
	eng, err := New(cfg, Dependencies{
		Corpus:   corpus,
		Taxonomy: &catalog.Taxonomy{Systems: []string{"Exhaust System"}},
		Vector:   &stubProvider{},
	})
	require.NoError(t, err)

	resp, err := eng.Search(context.Background(), "exhaust system gaskets", 10)
	require.NoError(t, err)
	assert.Equal(t, "Exhaust System", resp.Understanding.Entities[nlu.EntitySystem])
}
