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

// Package engine ties the retrieval stack together: it routes an
// analyzed query to the right index, merges and filters hits, and
// serves answers through the RAG orchestrator.
package engine

import (
	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/nlu"
)

// SearchResult is one retrieved record with its relevance score and
// the retrieval sources that produced it.
type SearchResult struct {
	Record      catalog.Record `json:"record"`
	Score       float64        `json:"score"`
	Sources     []string       `json:"sources"`
	CorpusIndex int            `json:"-"`
}

// SearchResponse is the full outcome of a routed search.
type SearchResponse struct {
	Results       []SearchResult    `json:"results"`
	Understanding nlu.Understanding `json:"understanding"`

	// Suggestions carries up to three user-facing hints, e.g. when an
	// exact lookup missed or the engine degraded to lexical-only.
	Suggestions []string `json:"suggestions,omitempty"`

	// Degraded is set when the semantic index was unavailable and the
	// engine answered from the lexical index alone.
	Degraded bool `json:"degraded,omitempty"`

	// Cached is set when the response was served from the query cache.
	Cached bool `json:"cached,omitempty"`
}

// AnswerResponse is a grounded natural-language answer plus the search
// that produced its context.
type AnswerResponse struct {
	Answer  string          `json:"answer"`
	Sources []string        `json:"sources,omitempty"`
	Search  *SearchResponse `json:"search,omitempty"`

	// Degraded is set when the LLM was unavailable and the answer is a
	// placeholder over the raw retrieval results.
	Degraded bool `json:"degraded,omitempty"`
}

const maxSuggestions = 3

func appendSuggestion(suggestions []string, s string) []string {
	if len(suggestions) >= maxSuggestions {
		return suggestions
	}
	return append(suggestions, s)
}
