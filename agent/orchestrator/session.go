package orchestrator

import (
	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
)

// Session is the in-memory conversation for one customer. The orchestrator
// owns it: turns are appended here first and flushed to the store before the
// loop continues.
type Session struct {
	// ID correlates log lines for one CLI run; it is not persisted.
	ID    string
	Phone string

	turns   []contractx.Turn
	resumed int
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []contractx.Turn {
	out := make([]contractx.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// ResumedTurns is how many prior persisted turns were reloaded into this
// session, zero for a first-time caller.
func (s *Session) ResumedTurns() int {
	return s.resumed
}

func (s *Session) append(turn contractx.Turn) {
	s.turns = append(s.turns, turn)
}
