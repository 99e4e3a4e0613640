package sessionrpc

import (
	"sync"
	"time"

	"github.com/relaycore/turnkit/composite"
	"github.com/relaycore/turnkit/telemetry"
	"github.com/relaycore/turnkit/turn"
)

// serverSession is one composite run plus everything the protocol layer
// needs to drive it across multiple prompts: the orchestrator it was
// built with, a serial-processing lock, and the cancel handle for
// whichever turn is currently in flight, if any.
type serverSession struct {
	id  string
	cwd string

	orchestrator *composite.Orchestrator
	composite    *composite.Session
	telemetry    *telemetry.Session

	mu          sync.Mutex // serializes prompt handling for this session
	activeMu    sync.Mutex // guards active and cancelled below
	active      *turn.CancelHandle
	cancelled   bool
	createdAt   time.Time
}

func (s *serverSession) setActiveCancel(h *turn.CancelHandle) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.active = h
	s.cancelled = false
}

func (s *serverSession) clearActiveCancel() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.active = nil
}

// cancel triggers the session's live turn, if any, and is idempotent:
// calling it with no active turn, or more than once, just records the
// session-level cancellation flag.
func (s *serverSession) cancel() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.cancelled = true
	if s.active != nil {
		s.active.Trigger()
	}
}
