// Package orchestrator runs the tool-calling loop: completion, branch on
// tool-call requests, sequential execution, feed results back, repeat until
// the model answers in plain text or the round cap trips.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
	promptx "github.com/pinnaclehs/intake-agent/agent/prompt"
)

const (
	defaultMaxRounds     = 10
	defaultHistoryWindow = 20

	// Returned when the model keeps requesting tools past the round cap.
	fallbackReply = "I'm sorry, I wasn't able to finish handling that request. " +
		"Please call our office directly and a team member will help you right away."
)

var ErrEmptyMessage = errors.New("message is empty")

// Option customizes a Service.
type Option func(*Service)

// WithMaxRounds caps completion rounds per user message. The loop otherwise
// terminates only when the model stops requesting tools.
func WithMaxRounds(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRounds = n
		}
	}
}

// WithHistoryWindow bounds how many persisted turns a resumed session reloads.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithClock overrides the time source used for the system prompt date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service drives conversations. Single-threaded per session; the only shared
// state is the injected collaborators.
type Service struct {
	store contractx.ConversationStore
	chat  contractx.ChatCompleter
	tools contractx.ToolGateway

	maxRounds     int
	historyWindow int
	now           func() time.Time
}

func New(store contractx.ConversationStore, chat contractx.ChatCompleter, tools contractx.ToolGateway, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	if chat == nil {
		return nil, errors.New("chat completer is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	s := &Service{
		store:         store,
		chat:          chat,
		tools:         tools,
		maxRounds:     defaultMaxRounds,
		historyWindow: defaultHistoryWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// NewSession seeds a conversation for the customer: the system instruction,
// and for a returning customer a resume note plus the reloaded history
// window in chronological order.
func (s *Service) NewSession(ctx context.Context, phone string) (*Session, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: customer phone is required", contractx.ErrValidation)
	}

	sess := &Session{
		ID:    uuid.NewString(),
		Phone: phone,
	}
	sess.append(contractx.SystemTurn(promptx.System(s.now())))

	past, err := s.store.History(ctx, phone, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}
	if len(past) > 0 {
		sess.append(contractx.SystemTurn(promptx.Resume()))
		for _, turn := range past {
			sess.append(turn)
		}
		sess.resumed = len(past)
	}

	log.Debug().
		Str("session_id", sess.ID).
		Int("resumed_turns", sess.resumed).
		Msg("session started")
	return sess, nil
}

// Greet runs the loop with no new user turn to produce the opening greeting.
func (s *Service) Greet(ctx context.Context, sess *Session) (string, error) {
	return s.run(ctx, sess)
}

// Reply appends and persists the user's message, then runs the loop until
// the model produces a final text answer.
func (s *Service) Reply(ctx context.Context, sess *Session, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if err := s.appendAndPersist(ctx, sess, contractx.UserTurn(text)); err != nil {
		return "", err
	}
	return s.run(ctx, sess)
}

// run is the tool-calling loop. Each iteration: one completion, then either
// a final answer or one round of sequential tool executions whose results
// are appended in request order before looping.
func (s *Service) run(ctx context.Context, sess *Session) (string, error) {
	logger := log.With().Str("session_id", sess.ID).Logger()

	for round := 0; round < s.maxRounds; round++ {
		candidate, err := s.chat.Complete(ctx, sess.turns)
		if err != nil {
			// No retry: replaying the completion could duplicate tool side
			// effects. The turn fails; in-memory state is kept.
			return "", err
		}

		if err := s.appendAndPersist(ctx, sess, candidate); err != nil {
			return "", err
		}

		if !candidate.HasToolCalls() {
			return candidate.Content, nil
		}

		for _, call := range candidate.ToolCalls {
			logger.Debug().
				Int("round", round).
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Str("arguments", call.Arguments).
				Msg("tool call requested")

			result := s.tools.Execute(ctx, call)
			if err := s.appendAndPersist(ctx, sess, contractx.ToolTurn(call.ID, string(result))); err != nil {
				return "", err
			}
		}
	}

	logger.Warn().Int("max_rounds", s.maxRounds).Msg("tool round cap exceeded, failing closed")
	if err := s.appendAndPersist(ctx, sess, contractx.AssistantTurn(fallbackReply)); err != nil {
		return "", err
	}
	return fallbackReply, nil
}

// appendAndPersist puts the turn in memory first, so a store failure aborts
// the turn without losing conversation state already built up.
func (s *Service) appendAndPersist(ctx context.Context, sess *Session, turn contractx.Turn) error {
	sess.append(turn)
	if err := s.store.SaveTurn(ctx, sess.Phone, turn); err != nil {
		return fmt.Errorf("persist %s turn: %w", turn.Role, err)
	}
	return nil
}
