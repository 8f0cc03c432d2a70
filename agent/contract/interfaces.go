package contract

import "context"

// ChatCompleter sends role-tagged turns (plus the tool manifest it was
// constructed with) to the completion service and returns one candidate turn.
type ChatCompleter interface {
	Complete(ctx context.Context, turns []Turn) (Turn, error)
}

// ToolGateway dispatches one tool-call request to its executor. The returned
// payload is always valid JSON; execution failures are encoded inside it,
// never surfaced as Go errors, so the orchestrator can always feed something
// back to the model.
type ToolGateway interface {
	Execute(ctx context.Context, call ToolCall) []byte
}

// ConversationStore is the durable side of a conversation: append-only turn
// writes and a windowed chronological read keyed by customer phone.
type ConversationStore interface {
	SaveTurn(ctx context.Context, phone string, turn Turn) error
	History(ctx context.Context, phone string, limit int) ([]Turn, error)
}
