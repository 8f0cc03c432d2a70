package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
)

type fakeChat struct {
	script []contractx.Turn
	err    error
	calls  int
}

func (f *fakeChat) Complete(ctx context.Context, turns []contractx.Turn) (contractx.Turn, error) {
	f.calls++
	if f.err != nil {
		return contractx.Turn{}, f.err
	}
	if len(f.script) == 0 {
		return contractx.Turn{}, errors.New("fake chat script exhausted")
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next, nil
}

type fakeTools struct {
	executed []contractx.ToolCall
}

func (f *fakeTools) Execute(ctx context.Context, call contractx.ToolCall) []byte {
	f.executed = append(f.executed, call)
	return []byte(fmt.Sprintf(`{"echo":%q}`, call.Name))
}

type savedTurn struct {
	phone string
	turn  contractx.Turn
}

type fakeStore struct {
	history []contractx.Turn
	loadErr error
	saveErr error
	saved   []savedTurn
}

func (f *fakeStore) SaveTurn(ctx context.Context, phone string, turn contractx.Turn) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, savedTurn{phone: phone, turn: turn})
	return nil
}

func (f *fakeStore) History(ctx context.Context, phone string, limit int) ([]contractx.Turn, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:], nil
	}
	return f.history, nil
}

func newTestService(t *testing.T, store *fakeStore, chat *fakeChat, tools *fakeTools, opts ...Option) *Service {
	t.Helper()
	svc, err := New(store, chat, tools, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestNewSessionFreshCustomer(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(t, store, &fakeChat{}, &fakeTools{})

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ResumedTurns() != 0 {
		t.Fatalf("expected no resumed turns, got %d", sess.ResumedTurns())
	}

	turns := sess.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 seed turn, got %d", len(turns))
	}
	if turns[0].Role != contractx.RoleSystem {
		t.Fatalf("expected system seed turn, got %s", turns[0].Role)
	}
	if !strings.Contains(turns[0].Content, "Pinnacle Home Services") {
		t.Fatal("system prompt missing company context")
	}
}

func TestNewSessionResumesHistory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		history: []contractx.Turn{
			contractx.UserTurn("hi, my sink is leaking"),
			contractx.AssistantTurn("Sorry to hear that! What's your zip code?"),
		},
	}
	svc := newTestService(t, store, &fakeChat{}, &fakeTools{})

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ResumedTurns() != 2 {
		t.Fatalf("expected 2 resumed turns, got %d", sess.ResumedTurns())
	}

	turns := sess.Turns()
	// system prompt, resume note, then the reloaded window in order.
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[1].Role != contractx.RoleSystem {
		t.Fatalf("expected resume note to be a system turn, got %s", turns[1].Role)
	}
	if turns[2].Content != "hi, my sink is leaking" {
		t.Fatalf("history out of order: %q", turns[2].Content)
	}
}

func TestNewSessionRequiresPhone(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeStore{}, &fakeChat{}, &fakeTools{})
	if _, err := svc.NewSession(context.Background(), "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReplyWithoutToolCalls(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	chat := &fakeChat{script: []contractx.Turn{
		contractx.AssistantTurn("We can help with that!"),
	}}
	svc := newTestService(t, store, chat, &fakeTools{})

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := svc.Reply(context.Background(), sess, "my AC broke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "We can help with that!" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	// user turn then assistant turn, both persisted under the phone key.
	if len(store.saved) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(store.saved))
	}
	if store.saved[0].turn.Role != contractx.RoleUser || store.saved[1].turn.Role != contractx.RoleAssistant {
		t.Fatalf("unexpected persisted roles: %s, %s", store.saved[0].turn.Role, store.saved[1].turn.Role)
	}
	if store.saved[0].phone != "512-555-0000" {
		t.Fatalf("unexpected phone key: %s", store.saved[0].phone)
	}
}

func TestReplyExecutesToolCallsInOrder(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	requests := contractx.Turn{
		Role: contractx.RoleAssistant,
		ToolCalls: []contractx.ToolCall{
			{ID: "call_1", Name: "check_service_area", Arguments: `{"zip_code":"78701"}`},
			{ID: "call_2", Name: "get_price_estimate", Arguments: `{"service_category":"plumbing","job_type":"leaky faucet"}`},
		},
	}
	chat := &fakeChat{script: []contractx.Turn{
		requests,
		contractx.AssistantTurn("You're in our area, and that runs $100-$200."),
	}}
	tools := &fakeTools{}
	svc := newTestService(t, store, chat, tools)

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := svc.Reply(context.Background(), sess, "78701, leaky faucet, what would that cost?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "$100-$200") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if len(tools.executed) != 2 {
		t.Fatalf("expected 2 tool executions, got %d", len(tools.executed))
	}
	if tools.executed[0].ID != "call_1" || tools.executed[1].ID != "call_2" {
		t.Fatalf("tool calls out of order: %s, %s", tools.executed[0].ID, tools.executed[1].ID)
	}

	// Persisted sequence: user, assistant(with calls), tool, tool, assistant.
	roles := make([]contractx.Role, 0, len(store.saved))
	for _, s := range store.saved {
		roles = append(roles, s.turn.Role)
	}
	want := []contractx.Role{
		contractx.RoleUser,
		contractx.RoleAssistant,
		contractx.RoleTool,
		contractx.RoleTool,
		contractx.RoleAssistant,
	}
	if len(roles) != len(want) {
		t.Fatalf("expected %d persisted turns, got %d (%v)", len(want), len(roles), roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("persisted turn %d: expected %s, got %s", i, want[i], roles[i])
		}
	}

	// Each tool turn answers its request id, in request order.
	if store.saved[2].turn.ToolCallID != "call_1" || store.saved[3].turn.ToolCallID != "call_2" {
		t.Fatalf("tool call ids mismatched: %s, %s",
			store.saved[2].turn.ToolCallID, store.saved[3].turn.ToolCallID)
	}
	if !strings.Contains(store.saved[2].turn.Content, "check_service_area") {
		t.Fatalf("tool result not fed back: %q", store.saved[2].turn.Content)
	}
}

func TestReplyRoundCapFailsClosed(t *testing.T) {
	t.Parallel()

	looping := contractx.Turn{
		Role: contractx.RoleAssistant,
		ToolCalls: []contractx.ToolCall{
			{ID: "call_x", Name: "lookup_customer", Arguments: `{"phone":"1"}`},
		},
	}
	store := &fakeStore{}
	chat := &fakeChat{script: []contractx.Turn{looping, looping, looping, looping}}
	tools := &fakeTools{}
	svc := newTestService(t, store, chat, tools, WithMaxRounds(3))

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := svc.Reply(context.Background(), sess, "look me up forever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
	if chat.calls != 3 {
		t.Fatalf("expected 3 completion rounds, got %d", chat.calls)
	}

	last := store.saved[len(store.saved)-1].turn
	if last.Role != contractx.RoleAssistant || last.Content != fallbackReply {
		t.Fatalf("fallback not persisted as final assistant turn: %+v", last)
	}
}

func TestReplyCompletionFailureKeepsMemory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	chat := &fakeChat{err: errors.New("rate limited")}
	svc := newTestService(t, store, chat, &fakeTools{})

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Reply(context.Background(), sess, "hello?"); err == nil {
		t.Fatal("expected completion error")
	}
	if chat.calls != 1 {
		t.Fatalf("completion must not be retried, got %d calls", chat.calls)
	}

	// The user turn stays in memory and was persisted before the failure.
	turns := sess.Turns()
	if turns[len(turns)-1].Content != "hello?" {
		t.Fatal("user turn lost from in-memory session")
	}
	if len(store.saved) != 1 || store.saved[0].turn.Role != contractx.RoleUser {
		t.Fatalf("expected only the user turn persisted, got %d", len(store.saved))
	}
}

func TestReplyStoreFailureKeepsMemory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{saveErr: errors.New("disk full")}
	chat := &fakeChat{script: []contractx.Turn{contractx.AssistantTurn("hi")}}
	svc := newTestService(t, store, chat, &fakeTools{})

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Reply(context.Background(), sess, "hello"); err == nil {
		t.Fatal("expected store error")
	}

	turns := sess.Turns()
	if turns[len(turns)-1].Content != "hello" {
		t.Fatal("user turn lost from in-memory session")
	}
}

func TestReplyRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeStore{}, &fakeChat{}, &fakeTools{})
	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Reply(context.Background(), sess, "  \t "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestGreetRunsLoopWithoutUserTurn(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	chat := &fakeChat{script: []contractx.Turn{
		contractx.AssistantTurn("Hi! Thanks for reaching out to Pinnacle Home Services."),
	}}
	svc := newTestService(t, store, chat, &fakeTools{})

	sess, err := svc.NewSession(context.Background(), "512-555-0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	greeting, err := svc.Greet(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if greeting == "" {
		t.Fatal("expected a greeting")
	}
	// Only the greeting itself is persisted; the system seed is not.
	if len(store.saved) != 1 || store.saved[0].turn.Role != contractx.RoleAssistant {
		t.Fatalf("unexpected persisted turns: %d", len(store.saved))
	}
}
