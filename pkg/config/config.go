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

// Package config defines the YAML configuration: one section per
// component, each with SetDefaults and Validate.
package config

import (
	"fmt"
)

// Config is the root configuration.
type Config struct {
	Logger        LoggerConfig        `yaml:"logger"`
	Corpus        CorpusConfig        `yaml:"corpus"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	LLM           LLMConfig           `yaml:"llm"`
	Vector        VectorConfig        `yaml:"vector"`
	Engine        EngineConfig        `yaml:"engine"`
	RAG           RAGConfig           `yaml:"rag"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	c.Embedder.SetDefaults()
	c.LLM.SetDefaults()
	c.Vector.SetDefaults()
	c.Engine.SetDefaults()
	c.RAG.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Corpus.Validate(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.RAG.Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// CorpusConfig locates the parts corpus and the optional taxonomy file.
type CorpusConfig struct {
	Path         string `yaml:"path"`
	TaxonomyPath string `yaml:"taxonomy_path"`
}

func (c *CorpusConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Type       string `yaml:"type"`
	Model      string `yaml:"model"`
	Host       string `yaml:"host"`
	APIKey     string `yaml:"api_key"`
	Dimension  int    `yaml:"dimension"`
	Timeout    int    `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Host == "" && c.Type == "ollama" {
		c.Host = "http://localhost:11434"
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "ollama":
		return nil
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for openai")
		}
		return nil
	default:
		return fmt.Errorf("unsupported embedder type: %s", c.Type)
	}
}

// LLMConfig configures the answer-synthesis model.
type LLMConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	Host        string  `yaml:"host"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		c.Model = "llama3.1"
	}
	if c.Host == "" && c.Type == "ollama" {
		c.Host = "http://localhost:11434"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Type {
	case "ollama":
		return nil
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for openai")
		}
		return nil
	default:
		return fmt.Errorf("unsupported llm type: %s", c.Type)
	}
}

// VectorConfig configures the semantic index provider.
type VectorConfig struct {
	// Provider selects the backend: "flat" (exact L2, persisted as
	// embeddings.bin) or "chromem" (embedded cosine store).
	Provider string `yaml:"provider"`

	// PersistPath is where the flat provider stores embeddings.bin, or
	// the chromem persistence directory. Empty disables persistence.
	PersistPath string `yaml:"persist_path"`

	// Compress enables gzip persistence (chromem only).
	Compress bool `yaml:"compress"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "flat"
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Provider {
	case "flat", "chromem":
		return nil
	default:
		return fmt.Errorf("unknown vector provider: %s", c.Provider)
	}
}

// EngineConfig configures the query router.
type EngineConfig struct {
	// DefaultTopK is the result count when the caller passes none.
	DefaultTopK int `yaml:"default_top_k"`

	// CacheSize bounds the recent-query LRU.
	CacheSize int `yaml:"cache_size"`
}

func (c *EngineConfig) SetDefaults() {
	if c.DefaultTopK == 0 {
		c.DefaultTopK = 10
	}
	if c.CacheSize == 0 {
		c.CacheSize = 256
	}
}

func (c *EngineConfig) Validate() error {
	if c.DefaultTopK < 0 {
		return fmt.Errorf("default_top_k must not be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}

// RAGConfig configures prompt assembly and the LLM call budget.
type RAGConfig struct {
	// TokenBudget caps the assembled prompt size; context records are
	// dropped from the tail until the prompt fits.
	TokenBudget int `yaml:"token_budget"`

	// MaxContextRecords caps how many retrieved records enter the
	// prompt before token budgeting.
	MaxContextRecords int `yaml:"max_context_records"`

	// Timeout bounds the LLM call, in seconds.
	Timeout int `yaml:"timeout"`
}

func (c *RAGConfig) SetDefaults() {
	if c.TokenBudget == 0 {
		c.TokenBudget = 3000
	}
	if c.MaxContextRecords == 0 {
		c.MaxContextRecords = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

func (c *RAGConfig) Validate() error {
	if c.TokenBudget < 0 || c.MaxContextRecords < 0 || c.Timeout < 0 {
		return fmt.Errorf("budgets must not be negative")
	}
	return nil
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeout     int    `yaml:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 120
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsEnabled bool `yaml:"metrics_enabled"`
	TracingEnabled bool `yaml:"tracing_enabled"`
}

func (c *ObservabilityConfig) SetDefaults() {
	// Pull-based metrics cost nothing until scraped; tracing stays
	// opt-in.
	if !c.MetricsEnabled && !c.TracingEnabled {
		c.MetricsEnabled = true
	}
}
