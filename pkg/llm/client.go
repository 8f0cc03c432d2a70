// Package llm wraps the OpenAI-compatible completion and embedding services
// behind the narrow interfaces the agent depends on.
package llm

import (
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey         string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model          string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	EmbeddingModel string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
	Temperature    float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout        time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

// NewClient builds an openai-go client from the config. BaseURL lets the
// same binary talk to any OpenAI-compatible endpoint.
func NewClient(cfg Config) (*openai.Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("llm api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)
	return &client, nil
}
