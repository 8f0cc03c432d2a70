// Package tool declares the business actions the model may invoke: a closed
// set of named functions, each with a schema manifest entry, a typed argument
// struct, and an executor. Executors never fail the caller; every internal
// failure becomes a structured payload fed back into the conversation.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/rs/zerolog/log"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
	storex "github.com/pinnaclehs/intake-agent/agent/store"
)

const (
	NameCheckServiceArea = "check_service_area"
	NameGetPriceEstimate = "get_price_estimate"
	NameBookAppointment  = "book_appointment"
	NameLookupCustomer   = "lookup_customer"
	NameSearchKnowledge  = "search_knowledge"
)

// KnowledgeSearcher is the slice of the knowledge retriever the catalog needs.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]KnowledgeMatch, error)
}

// KnowledgeMatch is one ranked knowledge-base chunk.
type KnowledgeMatch struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

type errorResult struct {
	Error string `json:"error"`
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithKnowledge registers the optional knowledge-base search tool.
func WithKnowledge(searcher KnowledgeSearcher) Option {
	return func(c *Catalog) {
		c.knowledge = searcher
	}
}

// WithClock overrides the booking timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// WithConfirmationFunc overrides confirmation-number generation.
func WithConfirmationFunc(generate func() string) Option {
	return func(c *Catalog) {
		if generate != nil {
			c.newConfirmation = generate
		}
	}
}

// Catalog holds the registered tools and their shared dependencies.
type Catalog struct {
	store           *storex.Store
	knowledge       KnowledgeSearcher
	now             func() time.Time
	newConfirmation func() string
}

func NewCatalog(st *storex.Store, opts ...Option) (*Catalog, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is required", contractx.ErrValidation)
	}
	c := &Catalog{
		store:           st,
		now:             time.Now,
		newConfirmation: newConfirmationNumber,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

var _ contractx.ToolGateway = (*Catalog)(nil)

// Definitions returns the schema manifest exposed to the completion service.
// It is built from the same constants the dispatcher switches on, so manifest
// and executors cannot drift apart.
func (c *Catalog) Definitions() []openai.ChatCompletionToolUnionParam {
	defs := []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(serviceAreaDefinition()),
		openai.ChatCompletionFunctionTool(priceEstimateDefinition()),
		openai.ChatCompletionFunctionTool(bookAppointmentDefinition()),
		openai.ChatCompletionFunctionTool(lookupCustomerDefinition()),
	}
	if c.knowledge != nil {
		defs = append(defs, openai.ChatCompletionFunctionTool(searchKnowledgeDefinition()))
	}
	return defs
}

// Execute dispatches one tool-call request and returns its JSON payload.
func (c *Catalog) Execute(ctx context.Context, call contractx.ToolCall) []byte {
	payload := c.dispatch(ctx, call)

	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("tool", call.Name).Msg("tool result marshal failed")
		encoded, _ = json.Marshal(errorResult{Error: fmt.Sprintf("tool %s produced an unserializable result", call.Name)})
	}

	log.Debug().
		Str("tool", call.Name).
		Str("call_id", call.ID).
		RawJSON("result", encoded).
		Msg("tool executed")
	return encoded
}

func (c *Catalog) dispatch(ctx context.Context, call contractx.ToolCall) any {
	switch call.Name {
	case NameCheckServiceArea:
		var args ServiceAreaArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return errorResult{Error: err.Error()}
		}
		return checkServiceArea(args)

	case NameGetPriceEstimate:
		var args PriceEstimateArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return errorResult{Error: err.Error()}
		}
		if err := args.validate(); err != nil {
			return errorResult{Error: err.Error()}
		}
		return getPriceEstimate(args)

	case NameBookAppointment:
		var args BookAppointmentArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return errorResult{Error: err.Error()}
		}
		if err := args.validate(); err != nil {
			return errorResult{Error: err.Error()}
		}
		return c.bookAppointment(ctx, args)

	case NameLookupCustomer:
		var args LookupCustomerArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return errorResult{Error: err.Error()}
		}
		if err := args.validate(); err != nil {
			return errorResult{Error: err.Error()}
		}
		return c.lookupCustomer(ctx, args)

	case NameSearchKnowledge:
		var args SearchKnowledgeArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return errorResult{Error: err.Error()}
		}
		if err := args.validate(); err != nil {
			return errorResult{Error: err.Error()}
		}
		return c.searchKnowledge(ctx, args)

	default:
		return errorResult{Error: fmt.Sprintf("unknown tool: %s", call.Name)}
	}
}

// decodeArgs parses the raw argument JSON from the completion service. An
// empty payload is treated as an empty object; malformed JSON is reported as
// a structured error, never a crash.
func decodeArgs(raw string, out any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = "{}"
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("invalid tool arguments: %v", err)
	}
	return nil
}
