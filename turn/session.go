package turn

import (
	"sync"
	"time"
)

// AgentIdentity names the agent that produced an InternalSession's history.
type AgentIdentity struct {
	Name string
	Role string
}

// InternalSession owns one interleaved history. It is mutated only by its
// owning turn engine; all mutation goes through AppendEntry so that
// History always observes a consistent snapshot.
type InternalSession struct {
	ID        string
	CreatedAt time.Time
	Agent     AgentIdentity

	mu      sync.Mutex
	history []HistoryEntry
}

// NewInternalSession creates an empty session owned by the given agent.
func NewInternalSession(id string, agent AgentIdentity, createdAt time.Time) *InternalSession {
	return &InternalSession{
		ID:        id,
		CreatedAt: createdAt,
		Agent:     agent,
	}
}

// AppendEntry appends one interleaved history entry.
func (s *InternalSession) AppendEntry(entry HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, CloneHistoryEntry(entry))
}

// History returns a deep copy of the interleaved history so far.
func (s *InternalSession) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneHistory(s.history)
}

// Len returns the number of entries currently in history.
func (s *InternalSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
