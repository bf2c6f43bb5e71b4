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

package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// embeddings.bin layout, little-endian:
//
//	magic   [4]byte  "GSKE"
//	version uint32
//	n       uint32   rows
//	d       uint32   columns
//	corpus fingerprint: uint32 length + bytes
//	model  fingerprint: uint32 length + bytes
//	matrix  n*d float32
//
// A save followed by a load yields byte-identical vectors.
var embeddingsMagic = [4]byte{'G', 'S', 'K', 'E'}

const embeddingsVersion uint32 = 1

// EmbeddingsSnapshot is the persisted form of the embedding matrix.
type EmbeddingsSnapshot struct {
	N                 int
	D                 int
	CorpusFingerprint string
	ModelFingerprint  string
	Matrix            []float32
}

// WriteEmbeddings writes a snapshot to path, replacing any existing
// file atomically via a temp-file rename.
func WriteEmbeddings(path string, snap *EmbeddingsSnapshot) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create embeddings file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := writeSnapshot(w, snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to flush embeddings: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close embeddings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace embeddings file: %w", err)
	}
	return nil
}

func writeSnapshot(w *bufio.Writer, snap *EmbeddingsSnapshot) error {
	if _, err := w.Write(embeddingsMagic[:]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, v := range []uint32{embeddingsVersion, uint32(snap.N), uint32(snap.D)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, s := range []string{snap.CorpusFingerprint, snap.ModelFingerprint} {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
			return fmt.Errorf("failed to write fingerprint: %w", err)
		}
		if _, err := w.WriteString(s); err != nil {
			return fmt.Errorf("failed to write fingerprint: %w", err)
		}
	}
	buf := make([]byte, 4)
	for _, f := range snap.Matrix {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write matrix: %w", err)
		}
	}
	return nil
}

// ReadEmbeddings reads a snapshot from path. Callers check the
// fingerprints against the live corpus and model.
func ReadEmbeddings(path string) (*EmbeddingsSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if magic != embeddingsMagic {
		return nil, fmt.Errorf("not an embeddings file: bad magic %q", magic)
	}

	var version, n, d uint32
	for _, dst := range []*uint32{&version, &n, &d} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}
	if version != embeddingsVersion {
		return nil, fmt.Errorf("unsupported embeddings version: %d", version)
	}

	snap := &EmbeddingsSnapshot{N: int(n), D: int(d)}
	for _, dst := range []*string{&snap.CorpusFingerprint, &snap.ModelFingerprint} {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("failed to read fingerprint: %w", err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read fingerprint: %w", err)
		}
		*dst = string(buf)
	}

	snap.Matrix = make([]float32, snap.N*snap.D)
	buf := make([]byte, 4)
	for i := range snap.Matrix {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read matrix: %w", err)
		}
		snap.Matrix[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	}
	return snap, nil
}
