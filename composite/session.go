package composite

import (
	"time"

	"github.com/relaycore/turnkit/turn"
)

// Session owns one externally visible composite run: a primary
// InternalSession, an optional co-agent InternalSession, a shared
// TodoList, and the control-flow policy governing how they're driven.
// It is mutated only by an Orchestrator's Run call.
type Session struct {
	ID      string
	Policy  Policy
	Todos   *turn.TodoList
	Primary *turn.InternalSession
	Coagent *turn.InternalSession

	generatedMessage   string
	generatedMessageOK bool
}

// NewSession creates a composite session with a fresh primary
// InternalSession and, for PolicyCoagent, a fresh co-agent
// InternalSession sharing the same TodoList.
func NewSession(id string, policy Policy, primaryAgent, coagentAgent turn.AgentIdentity, createdAt time.Time) *Session {
	session := &Session{
		ID:      id,
		Policy:  policy,
		Todos:   turn.NewTodoList(),
		Primary: turn.NewInternalSession(id+"-primary", primaryAgent, createdAt),
	}
	if policy.Kind == PolicyCoagent {
		session.Coagent = turn.NewInternalSession(id+"-coagent", coagentAgent, createdAt)
	}
	return session
}
