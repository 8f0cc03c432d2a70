package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
)

const defaultKnowledgeTopK = 3

type SearchKnowledgeArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (a SearchKnowledgeArgs) validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if a.TopK < 0 {
		return fmt.Errorf("top_k must be positive")
	}
	return nil
}

type SearchKnowledgeResult struct {
	Query   string           `json:"query"`
	Results []KnowledgeMatch `json:"results"`
}

func (c *Catalog) searchKnowledge(ctx context.Context, args SearchKnowledgeArgs) any {
	if c.knowledge == nil {
		return errorResult{Error: "knowledge base is not configured"}
	}

	topK := args.TopK
	if topK == 0 {
		topK = defaultKnowledgeTopK
	}

	matches, err := c.knowledge.Search(ctx, args.Query, topK)
	if err != nil {
		return errorResult{Error: fmt.Sprintf("knowledge search failed: %v", err)}
	}
	if matches == nil {
		matches = []KnowledgeMatch{}
	}

	return SearchKnowledgeResult{
		Query:   args.Query,
		Results: matches,
	}
}

func searchKnowledgeDefinition() openai.FunctionDefinitionParam {
	return openai.FunctionDefinitionParam{
		Name: NameSearchKnowledge,
		Description: openai.String(
			"Search the company knowledge base for policies, warranties, and service details. " +
				"Call this when the customer asks a question the other tools cannot answer."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The customer's question or search phrase",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Number of passages to return (default 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}
