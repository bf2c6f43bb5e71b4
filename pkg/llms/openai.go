package llms

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/httpclient"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

type OpenAILLM struct {
	config *config.LLMConfig
	client *httpclient.Client
	host   string
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func NewOpenAILLM(cfg *config.LLMConfig) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	host := cfg.Host
	if host == "" {
		host = defaultOpenAIBaseURL
	}
	return &OpenAILLM{
		config: cfg,
		host:   host,
		client: httpclient.New(
			httpclient.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
			httpclient.WithMaxRetries(2),
		),
	}, nil
}

func (l *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.PostJSON(ctx, l.host+"/v1/chat/completions", openAIChatRequest{
		Model:       l.config.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: l.config.Temperature,
		MaxTokens:   l.config.MaxTokens,
	}, map[string]string{"Authorization": "Bearer " + l.config.APIKey})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	var response openAIChatResponse
	if err := httpclient.DecodeJSON(resp, &response); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrLLMUnavailable)
	}
	return response.Choices[0].Message.Content, nil
}

func (l *OpenAILLM) Model() string {
	return l.config.Model
}

func (l *OpenAILLM) Close() error {
	return nil
}
