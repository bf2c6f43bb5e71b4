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

// Package lexical provides keyword retrieval over the parts corpus:
// exact field lookup and weighted fuzzy token matching.
package lexical

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/kadirpekel/gasket/pkg/catalog"
)

// Field boost weights. part_name dominates, taxonomy and manufacturer
// fields count double, every other string field counts once.
const (
	weightName    = 3.0
	weightBoosted = 2.0
	weightDefault = 1.0
)

var boostedFields = map[string]float64{
	catalog.FieldPartName:     weightName,
	catalog.FieldSystem:       weightBoosted,
	catalog.FieldSubSystem:    weightBoosted,
	catalog.FieldManufacturer: weightBoosted,
}

// Hit is a scored corpus index. Score is normalized to [0,1] for fuzzy
// results and fixed at 1.0 for exact lookups.
type Hit struct {
	Index int
	Score float64
}

// weightedField is one lowercased searchable field of a record.
type weightedField struct {
	text   string
	weight float64
}

// Index is an immutable keyword index over the corpus. Built once at
// startup; safe for concurrent readers.
type Index struct {
	corpus *catalog.Corpus
	fields [][]weightedField
}

// New builds the index by lowercasing every string field of every
// record, weights attached.
func New(corpus *catalog.Corpus) *Index {
	fields := make([][]weightedField, corpus.Len())
	for i := 0; i < corpus.Len(); i++ {
		rec := corpus.Record(i)
		for _, key := range rec.StringFields() {
			// compatible_models is folded in below whatever its shape,
			// so a string-valued one must not be indexed twice.
			if key == catalog.FieldCompatibleModels {
				continue
			}
			weight, ok := boostedFields[key]
			if !ok {
				weight = weightDefault
			}
			text := strings.ToLower(rec.Text(key))
			if text == "" {
				continue
			}
			fields[i] = append(fields[i], weightedField{text: text, weight: weight})
		}
		// compatible_models may arrive as a list; fold it in at default
		// weight so model names are searchable.
		if models := rec.Models(); len(models) != 0 {
			fields[i] = append(fields[i], weightedField{
				text:   strings.ToLower(strings.Join(models, ", ")),
				weight: weightDefault,
			})
		}
	}

	slog.Debug("Built lexical index", "records", corpus.Len())
	return &Index{corpus: corpus, fields: fields}
}

// Exact returns all records whose stringified attribute equals value,
// case-insensitively, in corpus order.
func (idx *Index) Exact(field, value string) []Hit {
	var hits []Hit
	for i := 0; i < idx.corpus.Len(); i++ {
		if strings.EqualFold(idx.corpus.Record(i).Text(field), value) {
			hits = append(hits, Hit{Index: i, Score: 1.0})
		}
	}
	return hits
}

// Fuzzy scores every record by the weighted sum of query-token
// occurrences across its string fields, drops zero scores, and returns
// the top matches sorted by score descending with ties broken by corpus
// order. Scores are normalized by the query token count and clipped to
// [0,1]. An empty query returns nothing. No stopword list is kept;
// semantics are the embedding layer's job.
func (idx *Index) Fuzzy(query string, limit int) []Hit {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	var hits []Hit
	for i, recFields := range idx.fields {
		var score float64
		for _, token := range tokens {
			for _, f := range recFields {
				if n := strings.Count(f.text, token); n > 0 {
					score += float64(n) * f.weight
				}
			}
		}
		if score == 0 {
			continue
		}
		normalized := score / float64(len(tokens))
		if normalized > 1 {
			normalized = 1
		}
		hits = append(hits, Hit{Index: i, Score: normalized})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
