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
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Taxonomy is the controlled system-name vocabulary: the three hierarchy
// levels flattened into one sorted set. It augments the NLU vocabulary
// derived from the corpus itself.
type Taxonomy struct {
	Systems []string
}

// taxonomyColumns are the expected header names, matched
// case-insensitively.
var taxonomyColumns = []string{"System Name", "Sub System Name", "Sub Sub System Name"}

// LoadTaxonomy reads the taxonomy file. CSV and XLSX are supported,
// selected by extension. A missing file is an error, but callers treat
// the taxonomy as optional: the corpus-derived vocabulary stands alone.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadTaxonomyXLSX(path)
	default:
		return loadTaxonomyCSV(path)
	}
}

func loadTaxonomyCSV(path string) (*Taxonomy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open taxonomy: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy csv: %w", err)
	}
	return taxonomyFromRows(rows)
}

func loadTaxonomyXLSX(path string) (*Taxonomy, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open taxonomy workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("taxonomy workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy sheet %q: %w", sheets[0], err)
	}
	return taxonomyFromRows(rows)
}

func taxonomyFromRows(rows [][]string) (*Taxonomy, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("taxonomy file is empty")
	}

	// Map header names to column indexes; unknown headers are ignored.
	cols := make([]int, 0, len(taxonomyColumns))
	for _, want := range taxonomyColumns {
		for i, got := range rows[0] {
			if strings.EqualFold(strings.TrimSpace(got), want) {
				cols = append(cols, i)
				break
			}
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("taxonomy header missing expected columns %v", taxonomyColumns)
	}

	set := make(map[string]struct{})
	for _, row := range rows[1:] {
		for _, col := range cols {
			if col >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[col]); v != "" {
				set[v] = struct{}{}
			}
		}
	}

	systems := make([]string, 0, len(set))
	for s := range set {
		systems = append(systems, s)
	}
	sort.Strings(systems)

	return &Taxonomy{Systems: systems}, nil
}
