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

// Package rag composes grounded prompts from retrieved part records and
// orchestrates the LLM call that synthesizes the final answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/llms"
)

// Answer is a synthesized response with its grounding citations.
type Answer struct {
	// Text is the LLM's answer.
	Text string `json:"text"`

	// Sources lists the part numbers placed in the prompt context.
	Sources []string `json:"sources,omitempty"`
}

// Orchestrator builds prompts and calls the LLM under a deadline. The
// LLM client is injected and caller-owned; the orchestrator holds only
// a reference.
type Orchestrator struct {
	llm     llms.LLM
	counter *TokenCounter
	cfg     config.RAGConfig
}

// NewOrchestrator creates an orchestrator for the given LLM.
func NewOrchestrator(llm llms.LLM, cfg config.RAGConfig) (*Orchestrator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	counter, err := NewTokenCounter(llm.Model())
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	return &Orchestrator{llm: llm, counter: counter, cfg: cfg}, nil
}

// Answer synthesizes a grounded answer from the retrieved records.
// Empty retrieval never reaches the LLM. Failures and deadline
// expiries surface as llms.ErrLLMUnavailable; engine state is never
// affected by a cancelled call.
func (o *Orchestrator) Answer(ctx context.Context, query string, records []catalog.Record) (*Answer, error) {
	if len(records) == 0 {
		return &Answer{Text: "No matching parts were found in the catalog for this query."}, nil
	}

	if o.cfg.MaxContextRecords > 0 && len(records) > o.cfg.MaxContextRecords {
		records = records[:o.cfg.MaxContextRecords]
	}

	prompt, sources := BuildPrompt(query, records, o.counter, o.cfg.TokenBudget)
	slog.Debug("Built RAG prompt",
		"context_records", len(sources),
		"prompt_tokens", o.counter.Count(prompt))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.Timeout)*time.Second)
	defer cancel()

	start := time.Now()
	text, err := o.llm.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: deadline exceeded after %s",
				llms.ErrLLMUnavailable, time.Since(start).Round(time.Millisecond))
		}
		return nil, err
	}

	return &Answer{Text: text, Sources: sources}, nil
}
