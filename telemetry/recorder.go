package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/relaycore/turnkit/idgen"
	"github.com/relaycore/turnkit/turn"
)

// Recorder wires a Store to the live model and tool-execution paths of a
// running session, without putting the store on the critical latency
// path of event emission: writes go through Store's own background
// writer, and Recorder only ever blocks the call it is attached to
// (Model.Generate, or one tool invocation), never the whole turn.
type Recorder struct {
	store Store
	ids   idgen.Generator
	now   func() time.Time
}

// NewRecorder builds a Recorder writing to store, minting trace and
// tool-call-record ids from ids.
func NewRecorder(store Store, ids idgen.Generator) *Recorder {
	return &Recorder{store: store, ids: ids, now: time.Now}
}

// Session scopes a Recorder to one InternalSession/agent pair, tracking
// which trace a tool call belongs to as iterations proceed.
type Session struct {
	r         *Recorder
	sessionID string
	agentName string
	provider  string
	model     string

	mu             sync.Mutex
	currentTraceID string
}

// NewSession opens a recording scope for one agent's InternalSession.
func (r *Recorder) NewSession(sessionID, agentName, provider, model string) *Session {
	return &Session{r: r, sessionID: sessionID, agentName: agentName, provider: provider, model: model}
}

// WrapModel returns a turn.Model that transparently records every
// Generate call as a Trace before returning its result to the caller.
func (s *Session) WrapModel(inner turn.Model) turn.Model {
	return &observedModel{session: s, inner: inner}
}

type observedModel struct {
	session *Session
	inner   turn.Model
}

func (m *observedModel) Generate(ctx context.Context, request turn.ModelRequest, onChunk func(turn.StreamChunk) error) (turn.Message, turn.Usage, error) {
	s := m.session
	traceID, err := s.r.ids.NewID(ctx, "trace")
	if err != nil {
		return turn.Message{}, turn.Usage{}, err
	}

	s.mu.Lock()
	s.currentTraceID = traceID
	s.mu.Unlock()

	requestBody, _ := json.Marshal(request)
	started := s.r.now()

	message, usage, genErr := m.inner.Generate(ctx, request, onChunk)

	responseToolCalls, _ := json.Marshal(message.ToolCalls())
	errText := ""
	if genErr != nil {
		errText = genErr.Error()
	}

	trace := Trace{
		ID:                traceID,
		SessionID:         s.sessionID,
		AgentName:         s.agentName,
		Provider:          s.provider,
		Model:             s.model,
		StartedAt:         started,
		LatencyMS:         s.r.now().Sub(started).Milliseconds(),
		InputTokens:       usage.InputTokens,
		OutputTokens:      usage.OutputTokens,
		RequestBody:       string(requestBody),
		ResponseContent:   message.TextContent(),
		ResponseToolCalls: string(responseToolCalls),
		Error:             errText,
	}
	saveErr := s.r.store.SaveTrace(durableContext(ctx), trace)
	return message, usage, errors.Join(genErr, saveErr)
}

// WrapEventSink returns a turn.EventSink that forwards every event to
// inner unchanged, while persisting a ToolCallRecord for each
// EventToolCallEnd, linked to whichever trace most recently ran in this
// session.
func (s *Session) WrapEventSink(inner turn.EventSink) turn.EventSink {
	return &observedSink{session: s, inner: inner}
}

type observedSink struct {
	session *Session
	inner   turn.EventSink
}

func (sink *observedSink) Publish(ctx context.Context, event turn.Event) error {
	if event.Type == turn.EventToolCallEnd && event.ToolResult != nil {
		s := sink.session
		s.mu.Lock()
		traceID := s.currentTraceID
		s.mu.Unlock()

		id, err := s.r.ids.NewID(ctx, "call")
		if err == nil {
			arguments, _ := json.Marshal(event.ToolArgs)
			record := ToolCallRecord{
				ID:         id,
				TraceID:    traceID,
				ToolName:   event.ToolName,
				Arguments:  string(arguments),
				Result:     event.ToolResult.Output,
				DurationMS: event.ToolResult.Metadata.DurationMS,
				Success:    event.ToolResult.Status == turn.ToolStatusSuccess,
			}
			// A failed write here must not fail the turn; the caller has
			// already observed the tool result, so telemetry loss is a
			// diagnostics concern, not a correctness one.
			_ = s.r.store.SaveToolCallRecord(durableContext(ctx), record)
		}
	}
	return sink.inner.Publish(ctx, event)
}

// durableContext detaches from ctx's cancellation once ctx has already
// been cancelled, so a write required for durability still lands even
// if it was triggered by the same cancellation that ended the turn.
func durableContext(ctx context.Context) context.Context {
	if ctx.Err() != nil {
		return context.WithoutCancel(ctx)
	}
	return ctx
}
