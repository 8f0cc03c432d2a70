package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
)

// EmbeddingService implements knowledge.Embedder over the embeddings API.
type EmbeddingService struct {
	client *openai.Client
	model  string
}

func NewEmbeddingService(client *openai.Client, cfg Config) (*EmbeddingService, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		return nil, errors.New("embedding model is required")
	}
	return &EmbeddingService{client: client, model: model}, nil
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(s.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response is empty", contractx.ErrSchemaViolation)
	}
	return resp.Data[0].Embedding, nil
}
