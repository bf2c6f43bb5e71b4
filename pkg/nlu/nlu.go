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

// Package nlu classifies query intent and extracts entities with
// deterministic, case-insensitive rules. No learned model: the intent
// rules and entity patterns are fixed, and the vehicle-model and
// system vocabularies come from the corpus and the taxonomy file.
package nlu

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentExactLookup    Intent = "exact_lookup"
	IntentSimilarity     Intent = "similarity"
	IntentFilteredSearch Intent = "filtered_search"
	IntentGeneral        Intent = "general"
)

// Strategy selects the retrieval path for an intent.
type Strategy string

const (
	StrategyField    Strategy = "field"
	StrategyLexical  Strategy = "lexical"
	StrategySemantic Strategy = "semantic"
	StrategyHybrid   Strategy = "hybrid"
)

// EntityKind is a category of extracted entity.
type EntityKind string

const (
	EntityPartNumber     EntityKind = "part_number"
	EntityModel          EntityKind = "model"
	EntityMaterial       EntityKind = "material"
	EntitySystem         EntityKind = "system"
	EntityPriceMax       EntityKind = "price_max"
	EntityPriceMin       EntityKind = "price_min"
	EntityStockThreshold EntityKind = "stock_threshold"
)

// Understanding is the NLU output for one query. Understand is
// idempotent: running it again on the preserved Query reproduces it.
type Understanding struct {
	Query    string                `json:"query"`
	Intent   Intent                `json:"intent"`
	Entities map[EntityKind]string `json:"entities,omitempty"`
	Strategy Strategy              `json:"strategy"`

	// Strict comparators exclude the boundary value: "under 2000"
	// rejects a 2000 cost while "at most 2000" and "between" keep it.
	PriceMaxExclusive bool `json:"price_max_exclusive,omitempty"`
	PriceMinExclusive bool `json:"price_min_exclusive,omitempty"`
}

// OEM part-number format, matched against uppercased query tokens.
var partNumberRe = regexp.MustCompile(`^[A-Z]{2,4}-?\d{3,6}(-V\d+)?$`)

const currencyPrefix = `(?:rs\.?\s*|inr\s*|usd\s*|[$₹€£]\s*)?`
const number = `(\d[\d,]*(?:\.\d+)?)`

var (
	similarityRe   = regexp.MustCompile(`(?i)\b(similar|like|alternatives?|equivalents?)\b`)
	betweenRe      = regexp.MustCompile(`(?i)\bbetween\s+` + currencyPrefix + number + `\s+and\s+` + currencyPrefix + number)
	priceUnderRe   = regexp.MustCompile(`(?i)\b(?:under|below|less\s+than|cheaper\s+than)\s+` + currencyPrefix + number)
	priceAtMostRe  = regexp.MustCompile(`(?i)\bat\s+most\s+` + currencyPrefix + number)
	priceOverRe    = regexp.MustCompile(`(?i)\b(?:over|above|more\s+than)\s+` + currencyPrefix + number)
	priceAtLeastRe = regexp.MustCompile(`(?i)\bat\s+least\s+` + currencyPrefix + number)
	currencyAmtRe  = regexp.MustCompile(`(?i)(?:[$₹€£]|\b(?:rs\.?|inr)\b)\s*` + number)
	stockAtLeastRe = regexp.MustCompile(`(?i)\bat\s+least\s+(\d+)\s+(?:units?\s+)?in\s+stock\b`)
	inStockRe      = regexp.MustCompile(`(?i)\bin\s+stock\b`)
)

// materials is the fixed vocabulary, multiword entries first so the
// longest match wins.
var materials = []string{
	"carbon fiber", "cast iron", "stainless steel",
	"aluminium", "aluminum", "steel", "rubber", "plastic", "copper",
	"brass", "ceramic", "glass", "leather", "alloy",
}

// Vocabulary is the corpus- and taxonomy-derived controlled vocabulary.
type Vocabulary struct {
	Models  []string
	Systems []string
}

// Analyzer performs rule-based query understanding.
type Analyzer struct {
	models  []string // sorted longest-first for greedy matching
	systems []string
}

// New builds an analyzer over the given vocabulary.
func New(vocab Vocabulary) *Analyzer {
	return &Analyzer{
		models:  byLengthDesc(vocab.Models),
		systems: byLengthDesc(vocab.Systems),
	}
}

// Understand classifies a query and extracts its entities. The rules
// run first-match-wins:
//
//  1. a token in OEM part-number format    -> exact_lookup
//  2. similar/like/alternative/equivalent  -> similarity
//  3. a numeric comparator or currency     -> filtered_search
//  4. otherwise                            -> general
func (a *Analyzer) Understand(query string) Understanding {
	u := Understanding{
		Query:    query,
		Entities: make(map[EntityKind]string),
	}

	a.extractEntities(query, &u)

	switch {
	case u.Entities[EntityPartNumber] != "":
		u.Intent = IntentExactLookup
	case similarityRe.MatchString(query):
		u.Intent = IntentSimilarity
	case hasComparator(query):
		u.Intent = IntentFilteredSearch
	default:
		u.Intent = IntentGeneral
	}

	u.Strategy = strategyFor(u.Intent)
	return u
}

func strategyFor(intent Intent) Strategy {
	switch intent {
	case IntentExactLookup:
		return StrategyField
	case IntentSimilarity:
		return StrategySemantic
	default:
		// filtered_search posts numeric predicates over a hybrid run;
		// general merges lexical and semantic.
		return StrategyHybrid
	}
}

func hasComparator(query string) bool {
	return betweenRe.MatchString(query) ||
		priceUnderRe.MatchString(query) ||
		priceAtMostRe.MatchString(query) ||
		priceOverRe.MatchString(query) ||
		priceAtLeastRe.MatchString(query) ||
		currencyAmtRe.MatchString(query) ||
		stockAtLeastRe.MatchString(query) ||
		inStockRe.MatchString(query)
}

func (a *Analyzer) extractEntities(query string, u *Understanding) {
	entities := u.Entities
	// Part number: first token matching the OEM pattern, uppercased so
	// the match stays case-insensitive.
	for _, token := range strings.Fields(query) {
		token = strings.Trim(token, `.,;:!?"'()[]`)
		if token == "" {
			continue
		}
		upper := strings.ToUpper(token)
		if partNumberRe.MatchString(upper) {
			entities[EntityPartNumber] = upper
			break
		}
	}

	// Price bounds. "between X and Y" sets both; otherwise each
	// direction independently; a bare currency amount acts as a cap.
	if m := betweenRe.FindStringSubmatch(query); m != nil {
		lo, hi := parseAmount(m[1]), parseAmount(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		entities[EntityPriceMin] = formatAmount(lo)
		entities[EntityPriceMax] = formatAmount(hi)
	} else {
		if m := priceUnderRe.FindStringSubmatch(query); m != nil {
			entities[EntityPriceMax] = formatAmount(parseAmount(m[1]))
			u.PriceMaxExclusive = true
		} else if m := priceAtMostRe.FindStringSubmatch(query); m != nil {
			entities[EntityPriceMax] = formatAmount(parseAmount(m[1]))
		}
		// "at least N in stock" is a stock bound, not a price bound.
		stockBound := stockAtLeastRe.MatchString(query)
		if m := priceOverRe.FindStringSubmatch(query); m != nil {
			entities[EntityPriceMin] = formatAmount(parseAmount(m[1]))
			u.PriceMinExclusive = true
		} else if m := priceAtLeastRe.FindStringSubmatch(query); m != nil && !stockBound {
			entities[EntityPriceMin] = formatAmount(parseAmount(m[1]))
		}
		if entities[EntityPriceMax] == "" && entities[EntityPriceMin] == "" {
			if m := currencyAmtRe.FindStringSubmatch(query); m != nil {
				entities[EntityPriceMax] = formatAmount(parseAmount(m[1]))
			}
		}
	}

	// Stock threshold.
	if m := stockAtLeastRe.FindStringSubmatch(query); m != nil {
		entities[EntityStockThreshold] = m[1]
	} else if inStockRe.MatchString(query) {
		entities[EntityStockThreshold] = "1"
	}

	// Vocabulary matches: longest entry wins.
	if model := matchVocab(query, a.models); model != "" {
		entities[EntityModel] = model
	}
	if system := matchVocab(query, a.systems); system != "" {
		entities[EntitySystem] = system
	}
	if material := matchVocab(query, materials); material != "" {
		entities[EntityMaterial] = strings.ToLower(material)
	}
}

// matchVocab returns the first (longest) vocabulary entry contained in
// the query at word boundaries, case-insensitively.
func matchVocab(query string, vocab []string) string {
	lower := strings.ToLower(query)
	for _, entry := range vocab {
		needle := strings.ToLower(entry)
		if needle == "" {
			continue
		}
		idx := 0
		for {
			pos := strings.Index(lower[idx:], needle)
			if pos < 0 {
				break
			}
			pos += idx
			if boundaryAt(lower, pos, len(needle)) {
				return entry
			}
			idx = pos + 1
		}
	}
	return ""
}

func boundaryAt(s string, pos, length int) bool {
	before := pos == 0 || !isWordChar(s[pos-1])
	end := pos + length
	after := end >= len(s) || !isWordChar(s[end])
	return before && after
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func byLengthDesc(entries []string) []string {
	sorted := make([]string, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(a, b int) bool {
		if len(sorted[a]) != len(sorted[b]) {
			return len(sorted[a]) > len(sorted[b])
		}
		return sorted[a] < sorted[b]
	})
	return sorted
}
