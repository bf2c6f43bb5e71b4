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

// Package catalog holds the parts corpus: the record model, the JSONL
// loader, the canonical text projection, and the taxonomy vocabulary.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known record attributes. Records are open maps; everything else a
// record carries (dimensions, capacity, friction coefficient, ...) is
// data, not schema.
const (
	FieldPartNumber       = "part_number"
	FieldPartName         = "part_name"
	FieldPartDescription  = "part_description"
	FieldSystem           = "system"
	FieldSubSystem        = "sub_system"
	FieldSubSubSystem     = "sub_sub_system"
	FieldManufacturer     = "manufacturer"
	FieldCompatibleModels = "compatible_models"
	FieldMaterial         = "material"
	FieldCost             = "cost"
	FieldStock            = "stock"
)

// Record is a single part record. It is treated as immutable after load;
// attribute variance across part types lives in the map, not in code.
type Record map[string]any

// PartNumber returns the record's stable identity, or "" when absent.
func (r Record) PartNumber() string {
	return r.Text(FieldPartNumber)
}

// Text returns the stringified value of an attribute. Lists join with
// ", " in stored order; numbers render without a trailing ".0"; missing
// keys return "".
func (r Record) Text(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Cost returns the normalized numeric cost. See NormalizeCost.
func (r Record) Cost() float64 {
	v, ok := r[FieldCost]
	if !ok {
		return 0
	}
	return NormalizeCost(v)
}

// Stock returns the stock count, clamped to be non-negative.
func (r Record) Stock() int {
	v, ok := r[FieldStock]
	if !ok {
		return 0
	}
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

// Models returns the compatible vehicle models as a slice.
// Accepts both JSON arrays and comma-separated strings.
func (r Record) Models() []string {
	v, ok := r[FieldCompatibleModels]
	if !ok || v == nil {
		return nil
	}
	var models []string
	switch t := v.(type) {
	case []any:
		for _, m := range t {
			if s := strings.TrimSpace(stringify(m)); s != "" {
				models = append(models, s)
			}
		}
	case []string:
		for _, m := range t {
			if s := strings.TrimSpace(m); s != "" {
				models = append(models, s)
			}
		}
	case string:
		for _, m := range strings.Split(t, ",") {
			if s := strings.TrimSpace(m); s != "" {
				models = append(models, s)
			}
		}
	}
	return models
}

// StringFields returns the keys of all attributes with textual values,
// sorted for deterministic iteration.
func (r Record) StringFields() []string {
	keys := make([]string, 0, len(r))
	for k, v := range r {
		if _, ok := v.(string); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, stringify(e))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}
