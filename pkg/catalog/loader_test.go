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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parts.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCorpus(t, `{"part_number":"BRK-00123","part_name":"Brake Pad Set","system":"Braking System","compatible_models":["Thar","Scorpio"]}
{"part_number":"CLT-00200","part_name":"Clutch Plate","system":"Transmission","cost":1450}

not json at all
{"part_name":"Orphan Without Number"}
{"part_number":"BRK-00123","part_name":"Duplicate Brake Pad"}
{"part_number":"FLT-00310","part_name":"Oil Filter","sub_system":"Lubrication"}
`)

	corpus, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, corpus.Len())
	stats := corpus.Stats()
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.BlankLines)

	// The first occurrence of a duplicated part number wins.
	idx := corpus.IndexOf("BRK-00123")
	require.Equal(t, 0, idx)
	assert.Equal(t, "Brake Pad Set", corpus.Record(idx).Text(FieldPartName))

	assert.Equal(t, -1, corpus.IndexOf("NOPE-1"))
	assert.NotEmpty(t, corpus.Fingerprint())
}

func TestLoadOversizedLine(t *testing.T) {
	// A single pathological line must not sink the valid records
	// around it.
	huge := `{"part_number":"BIG-00001","part_description":"` +
		strings.Repeat("x", maxLineBytes) + `"}`
	path := writeCorpus(t, `{"part_number":"BRK-00123","part_name":"Brake Pad Set"}
`+huge+`
{"part_number":"CLT-00200","part_name":"Clutch Plate"}
`)

	corpus, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, corpus.Len())
	assert.Equal(t, 1, corpus.Stats().Malformed)
	assert.Equal(t, -1, corpus.IndexOf("BIG-00001"))
	assert.Equal(t, 1, corpus.IndexOf("CLT-00200"))
}

func TestLoadVocabulary(t *testing.T) {
	path := writeCorpus(t, `{"part_number":"BRK-00123","system":"Braking System","sub_system":"Disc Brakes","compatible_models":["Thar","XUV700"]}
{"part_number":"CLT-00200","system":"Transmission","compatible_models":"Marazzo, Thar"}
`)

	corpus, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Marazzo", "Thar", "XUV700"}, corpus.Models())
	assert.Equal(t, []string{"Braking System", "Disc Brakes", "Transmission"}, corpus.Systems())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.ErrorIs(t, err, ErrCorpusMissing)
}

func TestLoadEmptyCorpus(t *testing.T) {
	path := writeCorpus(t, "\n\nnot json\n")
	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrCorpusEmpty))
}

func TestLoadDeterministicFingerprint(t *testing.T) {
	content := `{"part_number":"BRK-00123","part_name":"Brake Pad Set"}
{"part_number":"CLT-00200","part_name":"Clutch Plate"}
`
	a, err := Load(writeCorpus(t, content))
	require.NoError(t, err)
	b, err := Load(writeCorpus(t, content))
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := Load(writeCorpus(t, `{"part_number":"BRK-00123","part_name":"Brake Pad Kit"}
{"part_number":"CLT-00200","part_name":"Clutch Plate"}
`))
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
