package llms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/httpclient"
)

type OllamaLLM struct {
	config *config.LLMConfig
	client *httpclient.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaLLM(cfg *config.LLMConfig) *OllamaLLM {
	return &OllamaLLM{
		config: cfg,
		client: httpclient.New(
			httpclient.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
			httpclient.WithMaxRetries(2),
		),
	}
}

func (l *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	slog.Debug("Ollama generate request", "model", l.config.Model, "prompt_length", len(prompt))

	resp, err := l.client.PostJSON(ctx, l.config.Host+"/api/generate", ollamaGenerateRequest{
		Model:  l.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": l.config.Temperature,
			"num_predict": l.config.MaxTokens,
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	var response ollamaGenerateResponse
	if err := httpclient.DecodeJSON(resp, &response); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	if response.Response == "" {
		return "", fmt.Errorf("%w: empty response from model", ErrLLMUnavailable)
	}
	return response.Response, nil
}

func (l *OllamaLLM) Model() string {
	return l.config.Model
}

func (l *OllamaLLM) Close() error {
	return nil
}
