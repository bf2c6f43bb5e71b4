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

package rag

import (
	"strconv"
	"strings"

	"github.com/kadirpekel/gasket/pkg/catalog"
)

// Fixed prompt frame. The answer must stay grounded in the provided
// records, so the instruction is explicit about refusing otherwise.
const (
	promptHeader = "You are an automotive-parts assistant. Dataset context (one record per line):"
	promptFooter = "Answer using only the dataset context above. If you cannot, say so."
)

// BuildPrompt assembles the grounded prompt. Records enter in retrieval
// order and are dropped from the tail until the prompt fits the token
// budget (the first record always stays so the answer has at least one
// grounding line). It returns the prompt and the part numbers placed in
// the context, in order.
func BuildPrompt(query string, records []catalog.Record, counter *TokenCounter, tokenBudget int) (string, []string) {
	// Counted against the budget exactly as emitted below.
	frame := promptHeader + "\nUser Query: " + query + "\n" + promptFooter
	budget := tokenBudget - counter.Count(frame)

	var lines []string
	var sources []string
	used := 0
	for i, rec := range records {
		line := serializeRecord(rec)
		cost := counter.Count(line + "\n")
		if i > 0 && used+cost > budget {
			break
		}
		lines = append(lines, line)
		sources = append(sources, rec.PartNumber())
		used += cost
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("User Query: ")
	b.WriteString(query)
	b.WriteString("\n")
	b.WriteString(promptFooter)

	return b.String(), sources
}

// serializeRecord renders a record as canonical JSON-like text with a
// stable key order: the canonical projection fields, then cost and
// stock. Empty fields are omitted, part_number always stays.
func serializeRecord(rec catalog.Record) string {
	var b strings.Builder
	b.WriteString("{")
	first := true

	writeField := func(key, value string) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.Quote(key))
		b.WriteString(": ")
		b.WriteString(value)
	}

	for _, field := range catalog.CanonicalFields {
		value := rec.Text(field)
		if value == "" && field != catalog.FieldPartNumber {
			continue
		}
		writeField(field, strconv.Quote(value))
	}
	writeField(catalog.FieldCost, strconv.FormatFloat(rec.Cost(), 'f', -1, 64))
	writeField(catalog.FieldStock, strconv.Itoa(rec.Stock()))

	b.WriteString("}")
	return b.String()
}
