package sessionrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/relaycore/turnkit/composite"
	"github.com/relaycore/turnkit/idgen"
	"github.com/relaycore/turnkit/reactengine"
	"github.com/relaycore/turnkit/telemetry"
	"github.com/relaycore/turnkit/turn"
)

// AgentConfig names one agent's identity and the provider/model label
// recorded on its traces. The model and tool executor it runs against
// are supplied once on Deps and shared across sessions.
type AgentConfig struct {
	Identity turn.AgentIdentity
	Provider string
	Model    string
}

// Deps are the Server's fixed dependencies, shared by every session it
// creates.
type Deps struct {
	PrimaryModel turn.Model
	CoagentModel turn.Model // nil if the server never runs PolicyCoagent

	Tools     turn.ToolExecutor
	Recorder  *telemetry.Recorder
	IDs       idgen.Generator
	Policy    composite.Policy
	Primary   AgentConfig
	Coagent   AgentConfig // zero value if no co-agent

	MaxIterations  int
	DoomLoopWindow int
	ObserveCoagent bool

	ServerName    string
	ServerVersion string

	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Server dispatches JSON-RPC requests against a table of live composite
// sessions. Session creation and lookup are serialized by sessionsMu;
// prompt handling within one session is serialized by that session's
// own lock, so distinct sessions may process prompts concurrently.
type Server struct {
	deps Deps

	sessionsMu sync.Mutex
	sessions   *orderedmap.OrderedMap[string, *serverSession]

	writeMu sync.Mutex
	write   func(envelope) error
}

// New constructs a Server. Its write function, called for every outgoing
// response and notification, is installed by Serve from the transport
// loop's encoder and serialized internally against concurrent writers.
func New(deps Deps) *Server {
	return &Server{
		deps:     deps,
		sessions: orderedmap.New[string, *serverSession](),
	}
}

// handle dispatches one decoded incoming envelope, returning the
// response envelope to write back (nil for notifications, which never
// get a response).
func (s *Server) handle(ctx context.Context, in envelope) (*envelope, error) {
	switch in.Method {
	case "initialize":
		return s.respond(in, s.handleInitialize())
	case "session/new":
		result, err := s.handleSessionNew(in.Params)
		return s.respondErr(in, result, err)
	case "session/prompt":
		result, err := s.handleSessionPrompt(ctx, in.Params)
		return s.respondErr(in, result, err)
	case "session/cancel":
		s.handleSessionCancel(in.Params)
		return nil, nil
	case "session/setMode":
		result, err := s.handleSessionSetMode(in.Params)
		return s.respondErr(in, result, err)
	default:
		resp := newErrorResponse(in.ID, invalidParams("unknown method: "+in.Method))
		return &resp, nil
	}
}

func (s *Server) respond(in envelope, result any) (*envelope, error) {
	if in.isNotification() {
		return nil, nil
	}
	resp, err := newResponse(in.ID, result)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Server) respondErr(in envelope, result any, err error) (*envelope, error) {
	if in.isNotification() {
		return nil, nil
	}
	if err != nil {
		resp := newErrorResponse(in.ID, mapError(err))
		return &resp, nil
	}
	resp, merr := newResponse(in.ID, result)
	if merr != nil {
		return nil, merr
	}
	return &resp, nil
}

func (s *Server) handleInitialize() initializeResult {
	return initializeResult{
		ProtocolVersion:   "1",
		AgentCapabilities: agentCapabilities{LoadSession: false},
		AgentInfo:         agentInfo{Name: s.deps.ServerName, Version: s.deps.ServerVersion},
	}
}

func (s *Server) handleSessionNew(raw json.RawMessage) (sessionNewResult, error) {
	var params sessionNewParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return sessionNewResult{}, invalidParams("bad session/new params: " + err.Error())
	}
	if params.Cwd == "" {
		return sessionNewResult{}, invalidParams("cwd is required")
	}

	sessionID, err := s.deps.IDs.NewID(context.Background(), "sess")
	if err != nil {
		return sessionNewResult{}, fmt.Errorf("allocate session id: %w", err)
	}

	session, err := s.buildSession(sessionID, params.Cwd)
	if err != nil {
		return sessionNewResult{}, err
	}

	s.sessionsMu.Lock()
	s.sessions.Set(sessionID, session)
	s.sessionsMu.Unlock()

	return sessionNewResult{SessionID: sessionID}, nil
}

func (s *Server) buildSession(sessionID, cwd string) (*serverSession, error) {
	recorderSession := s.deps.Recorder.NewSession(sessionID, s.deps.Primary.Identity.Name, s.deps.Primary.Provider, s.deps.Primary.Model)

	primaryEngine, err := reactengine.NewReactEngine(
		recorderSession.WrapModel(s.deps.PrimaryModel),
		s.deps.Tools,
		reactengine.WithMaxIterations(s.deps.MaxIterations),
		reactengine.WithDoomLoopWindow(s.deps.DoomLoopWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("build primary engine: %w", err)
	}

	var coagentEngine turn.Engine
	if s.deps.Policy.Kind == composite.PolicyCoagent {
		if s.deps.CoagentModel == nil {
			return nil, fmt.Errorf("session/new: policy is coagent but no coagent model is configured")
		}
		coagentEngine, err = reactengine.NewReactEngine(
			recorderSession.WrapModel(s.deps.CoagentModel),
			s.deps.Tools,
			reactengine.WithMaxIterations(s.deps.MaxIterations),
			reactengine.WithDoomLoopWindow(s.deps.DoomLoopWindow),
		)
		if err != nil {
			return nil, fmt.Errorf("build coagent engine: %w", err)
		}
	}

	orchestrator, err := composite.New(primaryEngine, coagentEngine, s.deps.PrimaryModel)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	compositeSession := composite.NewSession(sessionID, s.deps.Policy, s.deps.Primary.Identity, s.deps.Coagent.Identity, s.deps.now())

	return &serverSession{
		id:           sessionID,
		cwd:          cwd,
		orchestrator: orchestrator,
		composite:    compositeSession,
		telemetry:    recorderSession,
		createdAt:    s.deps.now(),
	}, nil
}

func (s *Server) lookupSession(sessionID string) (*serverSession, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
	}
	return session, nil
}

func (s *Server) handleSessionPrompt(ctx context.Context, raw json.RawMessage) (sessionPromptResult, error) {
	var params sessionPromptParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return sessionPromptResult{}, invalidParams("bad session/prompt params: " + err.Error())
	}

	session, err := s.lookupSession(params.SessionID)
	if err != nil {
		return sessionPromptResult{}, err
	}

	text, err := promptText(params.Prompt)
	if err != nil {
		return sessionPromptResult{}, err
	}
	if text == "" {
		return sessionPromptResult{StopReason: stopReasonRefusal}, nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	session.composite.Primary.AppendEntry(turn.HistoryEntry{
		Kind:      turn.HistoryEntryUserMessage,
		Timestamp: s.deps.now(),
		Text:      text,
	})

	cancel := turn.NewCancelHandle()
	session.setActiveCancel(cancel)
	defer session.clearActiveCancel()

	sink := session.telemetry.WrapEventSink(&updateSink{
		sessionID:        session.id,
		primaryAgentName: s.deps.Primary.Identity.Name,
		observeCoagent:   s.deps.ObserveCoagent,
		emit:             s.emitUpdate,
	})

	tools := s.deps.Tools.Catalog(s.deps.Primary.Identity.Name)
	result, err := session.orchestrator.Run(ctx, session.composite, tools, sink, cancel)
	if err != nil {
		if reason, ok := promptStopReasonForErr(err); ok {
			return sessionPromptResult{StopReason: reason}, nil
		}
		return sessionPromptResult{}, err
	}

	return sessionPromptResult{StopReason: stopReasonFor(result)}, nil
}

func stopReasonFor(result composite.RunResult) string {
	switch result.Outcome {
	case composite.OutcomeCancelled:
		return stopReasonCancelled
	case composite.OutcomeComplete, composite.OutcomeNeedsInput:
		return stopReasonEndTurn
	default:
		return stopReasonRefusal
	}
}

// promptStopReasonForErr classifies an Orchestrator.Run error that
// represents a terminal outcome of the conversation itself, not a wiring
// failure. Providers that exhaust retries resolve as a refusal; runs that
// exhaust the iteration ceiling, trip doom-loop detection, or exceed the
// composite turn budget resolve as max_turn_requests. Anything else
// (missing model, missing coagent engine, and similar invariant
// violations) is a genuine internal error and the caller should propagate
// it unchanged so it surfaces as a JSON-RPC -32603 frame.
func promptStopReasonForErr(err error) (string, bool) {
	switch {
	case errors.Is(err, turn.ErrProviderUnrecoverable):
		return stopReasonRefusal, true
	case errors.Is(err, turn.ErrIterationLimitExceeded),
		errors.Is(err, turn.ErrDoomLoopDetected),
		errors.Is(err, composite.ErrCompositeTurnLimit):
		return stopReasonMaxTurnRequests, true
	default:
		return "", false
	}
}

func (s *Server) handleSessionCancel(raw json.RawMessage) {
	var params sessionCancelParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	session, err := s.lookupSession(params.SessionID)
	if err != nil {
		return
	}
	session.cancel()
}

func (s *Server) handleSessionSetMode(raw json.RawMessage) (map[string]any, error) {
	var params sessionSetModeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("bad session/setMode params: " + err.Error())
	}
	session, err := s.lookupSession(params.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer session.mu.Unlock()

	policy, err := policyForMode(params.ModeID, s.deps)
	if err != nil {
		return nil, err
	}
	session.composite.Policy = policy
	if policy.Kind == composite.PolicyCoagent && session.composite.Coagent == nil {
		session.composite.Coagent = turn.NewInternalSession(session.id+"-coagent", s.deps.Coagent.Identity, s.deps.now())
	}
	return map[string]any{}, nil
}

// emitUpdate marshals and writes one session/update notification,
// serialized against concurrent writers from other sessions.
func (s *Server) emitUpdate(sessionID string, update []byte) error {
	notification, err := newNotification("session/update", sessionUpdateParams{SessionID: sessionID, Update: update})
	if err != nil {
		return err
	}
	return s.writeEnvelope(notification)
}

func (s *Server) writeEnvelope(env envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.write(env)
}
