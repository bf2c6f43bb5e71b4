package embedders

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/httpclient"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

type OpenAIEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
	host   string
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewOpenAIEmbedder(cfg *config.EmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	host := cfg.Host
	if host == "" {
		host = defaultOpenAIBaseURL
	}
	return &OpenAIEmbedder{
		config: cfg,
		host:   host,
		client: httpclient.New(
			httpclient.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.PostJSON(ctx, e.host+"/v1/embeddings", openAIEmbedRequest{
		Model: e.config.Model,
		Input: texts,
	}, map[string]string{"Authorization": "Bearer " + e.config.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to send request to OpenAI: %w", err)
	}

	var response openAIEmbedResponse
	if err := httpclient.DecodeJSON(resp, &response); err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Data))
	}

	// The API documents data ordered by index; honor the index anyway.
	vectors := make([][]float32, len(texts))
	for _, d := range response.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.config.Dimension
}

func (e *OpenAIEmbedder) Fingerprint() string {
	return "openai/" + e.config.Model
}

func (e *OpenAIEmbedder) Close() error {
	return nil
}
