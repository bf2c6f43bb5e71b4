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
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/llms"
)

// stubLLM records the prompt it receives and returns a canned answer.
type stubLLM struct {
	reply   string
	err     error
	block   bool
	prompts []string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubLLM) Model() string { return "gpt-4o" }
func (s *stubLLM) Close() error  { return nil }

func ragConfig() config.RAGConfig {
	cfg := config.RAGConfig{}
	cfg.SetDefaults()
	return cfg
}

func testRecords() []catalog.Record {
	return []catalog.Record{
		{"part_number": "BRK-00123", "part_name": "Brake Pad Set", "cost": float64(2500), "stock": float64(4)},
		{"part_number": "BRK-00124", "part_name": "Brake Disc"},
	}
}

func TestAnswer(t *testing.T) {
	llm := &stubLLM{reply: "BRK-00123 fits."}
	o, err := NewOrchestrator(llm, ragConfig())
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "brake pads for Thar", testRecords())
	require.NoError(t, err)
	assert.Equal(t, "BRK-00123 fits.", answer.Text)
	assert.Equal(t, []string{"BRK-00123", "BRK-00124"}, answer.Sources)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, promptHeader))
	assert.True(t, strings.HasSuffix(prompt, promptFooter))
	assert.Contains(t, prompt, "User Query: brake pads for Thar")
	assert.Contains(t, prompt, `"part_number": "BRK-00123"`)
}

func TestAnswerEmptyRetrieval(t *testing.T) {
	llm := &stubLLM{reply: "should never be called"}
	o, err := NewOrchestrator(llm, ragConfig())
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "unobtainium flywheel", nil)
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "No matching parts")
	assert.Empty(t, answer.Sources)
	assert.Empty(t, llm.prompts, "empty retrieval must not reach the LLM")
}

func TestAnswerMaxContextRecords(t *testing.T) {
	cfg := ragConfig()
	cfg.MaxContextRecords = 1

	llm := &stubLLM{reply: "ok"}
	o, err := NewOrchestrator(llm, cfg)
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "brakes", testRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{"BRK-00123"}, answer.Sources)
}

func TestAnswerLLMFailure(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("%w: connection refused", llms.ErrLLMUnavailable)}
	o, err := NewOrchestrator(llm, ragConfig())
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "brakes", testRecords())
	assert.ErrorIs(t, err, llms.ErrLLMUnavailable)
}

func TestAnswerDeadline(t *testing.T) {
	cfg := ragConfig()
	cfg.Timeout = 0 // expires immediately

	llm := &stubLLM{block: true}
	o, err := NewOrchestrator(llm, cfg)
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "brakes", testRecords())
	assert.ErrorIs(t, err, llms.ErrLLMUnavailable)
}

func TestBuildPromptBudget(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	records := []catalog.Record{
		{"part_number": "AAA-100", "part_description": strings.Repeat("long description ", 50)},
		{"part_number": "BBB-200", "part_description": strings.Repeat("another long one ", 50)},
		{"part_number": "CCC-300"},
	}

	// A tiny budget still keeps the first record.
	prompt, sources := BuildPrompt("q", records, counter, 10)
	assert.Equal(t, []string{"AAA-100"}, sources)
	assert.Contains(t, prompt, "AAA-100")
	assert.NotContains(t, prompt, "BBB-200")

	// A generous budget keeps everything, in retrieval order.
	_, sources = BuildPrompt("q", records, counter, 100000)
	assert.Equal(t, []string{"AAA-100", "BBB-200", "CCC-300"}, sources)
}

func TestBuildPromptBudgetCountsEmittedFrame(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	records := []catalog.Record{
		{"part_number": "AAA-100"},
		{"part_number": "BBB-200"},
	}

	// The budget check must account for the frame exactly as emitted,
	// so a budget of precisely frame plus both records keeps both.
	frame := promptHeader + "\nUser Query: q\n" + promptFooter
	need := counter.Count(frame) +
		counter.Count(serializeRecord(records[0])+"\n") +
		counter.Count(serializeRecord(records[1])+"\n")

	_, sources := BuildPrompt("q", records, counter, need)
	assert.Equal(t, []string{"AAA-100", "BBB-200"}, sources)

	_, sources = BuildPrompt("q", records, counter, need-1)
	assert.Equal(t, []string{"AAA-100"}, sources)
}

func TestSerializeRecordOmitsEmpties(t *testing.T) {
	line := serializeRecord(catalog.Record{
		"part_number": "AAA-100",
		"material":    "",
		"cost":        "INR 2,500",
	})
	assert.Contains(t, line, `"part_number": "AAA-100"`)
	assert.Contains(t, line, `"cost": 2500`)
	assert.Contains(t, line, `"stock": 0`)
	assert.NotContains(t, line, `"material"`)
}
