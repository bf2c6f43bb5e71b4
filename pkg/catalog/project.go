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

package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CanonicalFields is the fixed field list of the canonical projection,
// in order. Persisted embeddings are tied to this list: changing it (or
// its order) changes every canonical string and therefore the corpus
// fingerprint, which forces an index rebuild.
var CanonicalFields = []string{
	FieldPartNumber,
	FieldPartName,
	FieldPartDescription,
	FieldSystem,
	FieldSubSystem,
	FieldSubSubSystem,
	FieldMaterial,
	FieldManufacturer,
	FieldCompatibleModels,
}

// CanonicalSeparator joins the projected fields.
const CanonicalSeparator = " | "

// Canonical projects a record to its canonical search string: the
// CanonicalFields joined with " | ", missing keys as empty strings.
// Each field is trimmed and inner whitespace runs collapse to a single
// space. Casing is preserved; the embedding model handles it.
// The projection is byte-for-byte deterministic.
func Canonical(r Record) string {
	parts := make([]string, len(CanonicalFields))
	for i, field := range CanonicalFields {
		parts[i] = collapseWhitespace(r.Text(field))
	}
	return strings.Join(parts, CanonicalSeparator)
}

// Fingerprint hashes the concatenation of every canonical string in
// corpus order. It detects stale persisted embeddings.
func Fingerprint(canonical []string) string {
	h := sha256.New()
	for _, s := range canonical {
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
