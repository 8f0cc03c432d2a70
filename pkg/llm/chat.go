package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
)

// ChatService implements contract.ChatCompleter over the chat completions
// API. The tool manifest is fixed at construction; it must stay in sync with
// the executors, which is why it comes straight from the tool catalog.
type ChatService struct {
	client      *openai.Client
	model       string
	temperature float64
	tools       []openai.ChatCompletionToolUnionParam
}

func NewChatService(client *openai.Client, cfg Config, tools []openai.ChatCompletionToolUnionParam) (*ChatService, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("chat model is required")
	}
	return &ChatService{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		tools:       tools,
	}, nil
}

var _ contractx.ChatCompleter = (*ChatService)(nil)

// Complete sends the turns plus the tool manifest and returns the single
// candidate turn, which may carry tool-call requests instead of content.
func (s *ChatService) Complete(ctx context.Context, turns []contractx.Turn) (contractx.Turn, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    toMessageParams(turns),
		Temperature: openai.Float(s.temperature),
	}
	if len(s.tools) > 0 {
		params.Tools = s.tools
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.Turn{}, fmt.Errorf("%w: chat completion: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Turn{}, fmt.Errorf("%w: completion returned no choices", contractx.ErrSchemaViolation)
	}
	return fromMessage(resp.Choices[0].Message), nil
}

func toMessageParams(turns []contractx.Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case contractx.RoleSystem:
			out = append(out, openai.SystemMessage(turn.Content))
		case contractx.RoleUser:
			out = append(out, openai.UserMessage(turn.Content))
		case contractx.RoleTool:
			out = append(out, openai.ToolMessage(turn.Content, turn.ToolCallID))
		case contractx.RoleAssistant:
			out = append(out, assistantParam(turn))
		}
	}
	return out
}

func assistantParam(turn contractx.Turn) openai.ChatCompletionMessageParamUnion {
	if !turn.HasToolCalls() {
		return openai.AssistantMessage(turn.Content)
	}

	msg := openai.ChatCompletionAssistantMessageParam{}
	// Content stays unset when empty: a tool-calling assistant turn may have
	// null content on the wire.
	if turn.Content != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(turn.Content),
		}
	}
	for _, call := range turn.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func fromMessage(msg openai.ChatCompletionMessage) contractx.Turn {
	turn := contractx.Turn{
		Role:    contractx.RoleAssistant,
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, contractx.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return turn
}
