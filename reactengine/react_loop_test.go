package reactengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaycore/turnkit/reactengine"
	"github.com/relaycore/turnkit/turn"
)

// scriptedModel returns one queued message per Generate call.
type scriptedModel struct {
	messages []turn.Message
	usage    turn.Usage
	err      error
	calls    int
}

func (m *scriptedModel) Generate(_ context.Context, _ turn.ModelRequest, onChunk func(turn.StreamChunk) error) (turn.Message, turn.Usage, error) {
	if m.err != nil {
		return turn.Message{}, turn.Usage{}, m.err
	}
	if m.calls >= len(m.messages) {
		return turn.Message{}, turn.Usage{}, errors.New("scriptedModel: out of scripted responses")
	}
	msg := m.messages[m.calls]
	m.calls++
	if err := onChunk(turn.StreamChunk{Kind: turn.StreamChunkTextDelta, TextDelta: msg.TextContent()}); err != nil {
		return turn.Message{}, turn.Usage{}, err
	}
	return msg, m.usage, nil
}

// stubTools executes every call with a fixed result, recording the calls
// it received.
type stubTools struct {
	result  turn.ToolResult
	err     error
	catalog []turn.ToolDefinition
	calls   []turn.ToolCall
}

func (s *stubTools) Execute(_ context.Context, call turn.ToolCall, tc turn.ToolContext) (turn.ToolResult, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return turn.ToolResult{}, s.err
	}
	result := s.result
	result.CallID = call.ID
	result.Name = call.Name
	return result, nil
}

func (s *stubTools) Catalog(string) []turn.ToolDefinition { return s.catalog }

func textOnlyMessage(text string) turn.Message {
	return turn.Message{Role: turn.RoleAssistant, Content: []turn.ContentBlock{{Kind: turn.ContentBlockText, Text: text}}}
}

func toolCallMessage(id, name string, args map[string]any) turn.Message {
	return turn.Message{Role: turn.RoleAssistant, Content: []turn.ContentBlock{
		{Kind: turn.ContentBlockToolCall, ToolCallID: id, ToolName: name, ToolArgs: args},
	}}
}

func newSession() *turn.InternalSession {
	return turn.NewInternalSession("sess_1", turn.AgentIdentity{Name: "primary", Role: "primary"}, time.Now())
}

func TestExecuteTurnEndsOnTextOnlyResponse(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{messages: []turn.Message{textOnlyMessage("all good, nothing to do")}}
	tools := &stubTools{}
	engine, err := reactengine.NewReactEngine(model, tools)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.ExecuteTurn(context.Background(), newSession(), nil, turn.NoopEventSink{}, nil)
	if err != nil {
		t.Fatalf("execute turn: %v", err)
	}
	if result.Outcome != turn.TurnOutcomeTextOnly || result.Text != "all good, nothing to do" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteTurnRunsToolCallsAndStopsOnTaskComplete(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{messages: []turn.Message{
		toolCallMessage("call-1", "grep", map[string]any{"pattern": "foo"}),
		toolCallMessage("call-2", turn.TaskCompleteToolName, map[string]any{"summary": "found it"}),
	}}
	tools := &stubTools{result: turn.ToolResult{Status: turn.ToolStatusSuccess, Output: "a.go:1:foo"}}
	engine, err := reactengine.NewReactEngine(model, tools)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	session := newSession()
	result, err := engine.ExecuteTurn(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	if err != nil {
		t.Fatalf("execute turn: %v", err)
	}
	if result.Outcome != turn.TurnOutcomeTaskComplete || result.TaskComplete == nil || *result.TaskComplete != "found it" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(tools.calls) != 2 {
		t.Fatalf("expected both tool calls to execute, got %d", len(tools.calls))
	}
	if len(result.ExecutedToolCalls) != 2 {
		t.Fatalf("expected two recorded tool calls, got %d", len(result.ExecutedToolCalls))
	}

	history := session.History()
	var toolResultCount int
	for _, entry := range history {
		if entry.Kind == turn.HistoryEntryToolResult {
			toolResultCount++
		}
	}
	if toolResultCount != 2 {
		t.Fatalf("expected two tool-result history entries, got %d", toolResultCount)
	}
}

func TestExecuteTurnDetectsDoomLoop(t *testing.T) {
	t.Parallel()

	call := toolCallMessage("call-1", "grep", map[string]any{"pattern": "foo"})
	model := &scriptedModel{messages: []turn.Message{call, call, call, call}}
	tools := &stubTools{result: turn.ToolResult{Status: turn.ToolStatusSuccess, Output: "same every time"}}
	engine, err := reactengine.NewReactEngine(model, tools, reactengine.WithDoomLoopWindow(2))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.ExecuteTurn(context.Background(), newSession(), nil, turn.NoopEventSink{}, nil)
	if !errors.Is(err, turn.ErrDoomLoopDetected) {
		t.Fatalf("expected ErrDoomLoopDetected, got %v", err)
	}
	if result.Outcome != turn.TurnOutcomeDoomLoopDetected {
		t.Fatalf("expected doom-loop outcome, got %+v", result)
	}
}

func TestExecuteTurnHitsIterationLimit(t *testing.T) {
	t.Parallel()

	var messages []turn.Message
	for i := 0; i < 5; i++ {
		messages = append(messages, toolCallMessage("call", "edit_file", map[string]any{"n": i}))
	}
	model := &scriptedModel{messages: messages}
	tools := &stubTools{result: turn.ToolResult{Status: turn.ToolStatusSuccess, Output: "ok"}}
	engine, err := reactengine.NewReactEngine(model, tools, reactengine.WithMaxIterations(3), reactengine.WithDoomLoopWindow(10))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.ExecuteTurn(context.Background(), newSession(), nil, turn.NoopEventSink{}, nil)
	if !errors.Is(err, turn.ErrIterationLimitExceeded) {
		t.Fatalf("expected ErrIterationLimitExceeded, got %v", err)
	}
	if result.Outcome != turn.TurnOutcomeIterationLimit {
		t.Fatalf("expected iteration-limit outcome, got %+v", result)
	}
}

func TestExecuteTurnRejectsDuplicateToolCallIDs(t *testing.T) {
	t.Parallel()

	msg := turn.Message{Role: turn.RoleAssistant, Content: []turn.ContentBlock{
		{Kind: turn.ContentBlockToolCall, ToolCallID: "dup", ToolName: "grep"},
		{Kind: turn.ContentBlockToolCall, ToolCallID: "dup", ToolName: "read_file"},
	}}
	model := &scriptedModel{messages: []turn.Message{msg}}
	tools := &stubTools{}
	engine, err := reactengine.NewReactEngine(model, tools)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = engine.ExecuteTurn(context.Background(), newSession(), nil, turn.NoopEventSink{}, nil)
	if !errors.Is(err, turn.ErrToolCallInvalid) {
		t.Fatalf("expected ErrToolCallInvalid, got %v", err)
	}
}

func TestExecuteTurnStopsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{messages: []turn.Message{textOnlyMessage("should never be reached")}}
	tools := &stubTools{}
	engine, err := reactengine.NewReactEngine(model, tools)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	cancel := turn.NewCancelHandle()
	cancel.Trigger()

	result, err := engine.ExecuteTurn(context.Background(), newSession(), nil, turn.NoopEventSink{}, cancel)
	if err != nil {
		t.Fatalf("expected cancellation to be reported without an error, got %v", err)
	}
	if result.Outcome != turn.TurnOutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %+v", result)
	}
	if model.calls != 0 {
		t.Fatalf("expected the model to never be called once cancel is pre-triggered")
	}
}

func TestExecuteTurnPropagatesModelError(t *testing.T) {
	t.Parallel()

	boom := errors.New("provider exploded")
	model := &scriptedModel{err: boom}
	tools := &stubTools{}
	engine, err := reactengine.NewReactEngine(model, tools)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.ExecuteTurn(context.Background(), newSession(), nil, turn.NoopEventSink{}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the model error to propagate, got %v", err)
	}
	if result.Outcome != turn.TurnOutcomeError {
		t.Fatalf("expected an error outcome, got %+v", result)
	}
}

func TestExecuteTurnRejectsNilContextAndSession(t *testing.T) {
	t.Parallel()

	engine, err := reactengine.NewReactEngine(&scriptedModel{}, &stubTools{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := engine.ExecuteTurn(nil, newSession(), nil, turn.NoopEventSink{}, nil); !errors.Is(err, turn.ErrContextNil) {
		t.Fatalf("expected ErrContextNil, got %v", err)
	}
	if _, err := engine.ExecuteTurn(context.Background(), nil, nil, turn.NoopEventSink{}, nil); !errors.Is(err, turn.ErrSessionNil) {
		t.Fatalf("expected ErrSessionNil, got %v", err)
	}
}

func TestNewReactEngineRequiresModelAndTools(t *testing.T) {
	t.Parallel()

	if _, err := reactengine.NewReactEngine(nil, &stubTools{}); !errors.Is(err, turn.ErrMissingModel) {
		t.Fatalf("expected ErrMissingModel, got %v", err)
	}
	if _, err := reactengine.NewReactEngine(&scriptedModel{}, nil); !errors.Is(err, turn.ErrMissingToolExecutor) {
		t.Fatalf("expected ErrMissingToolExecutor, got %v", err)
	}
}
