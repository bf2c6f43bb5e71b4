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
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

var (
	// ErrCorpusMissing indicates the corpus file does not exist.
	ErrCorpusMissing = errors.New("corpus file missing")

	// ErrCorpusEmpty indicates the corpus file yielded zero valid records.
	ErrCorpusEmpty = errors.New("corpus contains no valid records")
)

// LoadStats summarizes a corpus load.
type LoadStats struct {
	Loaded     int `json:"loaded"`
	Malformed  int `json:"malformed"`
	Duplicates int `json:"duplicates"`
	BlankLines int `json:"blank_lines"`
}

// Corpus is the loaded parts catalog. It is built once at startup and
// read-only for the process lifetime, so concurrent queries read it
// without locking.
type Corpus struct {
	records     []Record
	canonical   []string
	byPart      map[string]int
	fingerprint string
	models      []string
	systems     []string
	stats       LoadStats
}

// Load reads a newline-delimited JSON corpus: one record per line,
// UTF-8. Blank lines are skipped; lines that fail to parse or lack a
// part_number are counted and skipped; duplicate part numbers reject
// the later record. Loading is all-or-nothing: either a complete Corpus
// is returned or an error, never a partial update of a live corpus.
func Load(path string) (*Corpus, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusMissing, path)
		}
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer file.Close()

	c := &Corpus{byPart: make(map[string]int)}

	modelSet := make(map[string]struct{})
	systemSet := make(map[string]struct{})

	reader := bufio.NewReaderSize(file, 64*1024)
	lineNo := 0
	for {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("failed to read corpus: %w", readErr)
		}
		if raw != "" {
			lineNo++
			c.ingestLine(raw, lineNo, modelSet, systemSet)
		}
		if readErr == io.EOF {
			break
		}
	}

	if len(c.records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorpusEmpty, path)
	}

	c.stats.Loaded = len(c.records)
	c.fingerprint = Fingerprint(c.canonical)
	c.models = sortedKeys(modelSet)
	c.systems = sortedKeys(systemSet)

	slog.Info("Loaded parts corpus",
		"path", path,
		"records", c.stats.Loaded,
		"malformed", c.stats.Malformed,
		"duplicates", c.stats.Duplicates)

	return c, nil
}

// maxLineBytes caps a single corpus line. Longer lines are skipped as
// malformed rather than failing the whole load.
const maxLineBytes = 4 * 1024 * 1024

func (c *Corpus) ingestLine(raw string, lineNo int, modelSet, systemSet map[string]struct{}) {
	if len(raw) > maxLineBytes {
		c.stats.Malformed++
		slog.Warn("Skipping oversized corpus line", "line", lineNo, "bytes", len(raw))
		return
	}
	line := strings.TrimSpace(raw)
	if line == "" {
		c.stats.BlankLines++
		return
	}

	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		c.stats.Malformed++
		slog.Debug("Skipping malformed corpus line", "line", lineNo, "error", err)
		return
	}

	pn := rec.PartNumber()
	if pn == "" {
		c.stats.Malformed++
		slog.Debug("Skipping record without part_number", "line", lineNo)
		return
	}
	if _, exists := c.byPart[pn]; exists {
		c.stats.Duplicates++
		slog.Warn("Duplicate part number rejected", "part_number", pn, "line", lineNo)
		return
	}

	c.byPart[pn] = len(c.records)
	c.records = append(c.records, rec)
	c.canonical = append(c.canonical, Canonical(rec))

	for _, m := range rec.Models() {
		modelSet[m] = struct{}{}
	}
	for _, f := range []string{FieldSystem, FieldSubSystem, FieldSubSubSystem} {
		if s := strings.TrimSpace(rec.Text(f)); s != "" {
			systemSet[s] = struct{}{}
		}
	}
}

// Len returns the number of records.
func (c *Corpus) Len() int { return len(c.records) }

// Record returns the record at corpus index i.
func (c *Corpus) Record(i int) Record { return c.records[i] }

// Records returns all records in corpus order. Callers must not mutate.
func (c *Corpus) Records() []Record { return c.records }

// Canonical returns the canonical string of the record at index i.
func (c *Corpus) Canonical(i int) string { return c.canonical[i] }

// CanonicalStrings returns all canonical strings in corpus order.
func (c *Corpus) CanonicalStrings() []string { return c.canonical }

// Fingerprint returns the corpus fingerprint.
func (c *Corpus) Fingerprint() string { return c.fingerprint }

// IndexOf returns the corpus index of a part number, or -1.
func (c *Corpus) IndexOf(partNumber string) int {
	if i, ok := c.byPart[partNumber]; ok {
		return i
	}
	return -1
}

// Models returns the sorted vocabulary of known vehicle models.
func (c *Corpus) Models() []string { return c.models }

// Systems returns the sorted vocabulary of known system names, drawn
// from all three hierarchy levels.
func (c *Corpus) Systems() []string { return c.systems }

// Stats returns the load statistics.
func (c *Corpus) Stats() LoadStats { return c.stats }

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
