package reactengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaycore/turnkit/history"
	"github.com/relaycore/turnkit/turn"
)

// ReactEngine is the base turn engine: a streaming ReAct loop that
// alternates model calls and tool executions until a terminal condition
// is reached.
type ReactEngine struct {
	model         turn.Model
	tools         turn.ToolExecutor
	maxIterations int
	doomLoopWin   int
	now           func() time.Time
}

// Option configures a ReactEngine at construction time.
type Option func(*ReactEngine)

// WithMaxIterations overrides turn.DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(e *ReactEngine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithDoomLoopWindow overrides turn.DefaultDoomLoopWindow.
func WithDoomLoopWindow(n int) Option {
	return func(e *ReactEngine) {
		if n > 0 {
			e.doomLoopWin = n
		}
	}
}

// WithClock overrides the engine's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *ReactEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewReactEngine constructs a base turn engine.
func NewReactEngine(model turn.Model, tools turn.ToolExecutor, opts ...Option) (*ReactEngine, error) {
	if model == nil {
		return nil, fmt.Errorf("new react engine: %w", turn.ErrMissingModel)
	}
	if tools == nil {
		return nil, fmt.Errorf("new react engine: %w", turn.ErrMissingToolExecutor)
	}
	e := &ReactEngine{
		model:         model,
		tools:         tools,
		maxIterations: turn.DefaultMaxIterations,
		doomLoopWin:   turn.DefaultDoomLoopWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var _ turn.Engine = (*ReactEngine)(nil)

// ExecuteTurn runs the ReAct loop: project history, call the model,
// execute any tool calls it requests, append results, and repeat until
// task_complete, a text-only response, cancellation, a doom loop, or the
// iteration ceiling.
func (e *ReactEngine) ExecuteTurn(ctx context.Context, session *turn.InternalSession, tools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (turn.TurnResult, error) {
	if ctx == nil {
		return turn.TurnResult{}, turn.ErrContextNil
	}
	if session == nil {
		return turn.TurnResult{}, turn.ErrSessionNil
	}
	if eventSink == nil {
		eventSink = turn.NoopEventSink{}
	}

	agentName := session.Agent.Name
	guard := newDoomLoopGuard(e.doomLoopWin)

	result := turn.TurnResult{}

	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		if cancel != nil && cancel.Triggered() {
			e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventCancelled})
			result.Outcome = turn.TurnOutcomeCancelled
			return result, nil
		}

		modelFacing := history.ProjectModelFacing(session.History())
		assistant, usage, err := e.model.Generate(ctx, turn.ModelRequest{Messages: modelFacing, Tools: tools}, func(chunk turn.StreamChunk) error {
			return e.forwardChunk(ctx, eventSink, agentName, chunk)
		})
		result.Usage.Add(usage)
		e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventUsage, Usage: usage})

		if err != nil {
			if isCancellation(ctx, cancel, err) {
				e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventCancelled})
				result.Outcome = turn.TurnOutcomeCancelled
				return result, nil
			}
			e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventError, Message: err.Error()})
			result.Outcome = turn.TurnOutcomeError
			return result, err
		}

		result.Text += assistant.TextContent()
		e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventTextComplete, Text: assistant.TextContent()})

		toolCalls := toToolCalls(assistant.ToolCalls())
		if err := validateToolCallShape(toolCalls); err != nil {
			e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventError, Message: err.Error()})
			result.Outcome = turn.TurnOutcomeError
			return result, err
		}

		session.AppendEntry(turn.HistoryEntry{
			Kind:      turn.HistoryEntryAssistantText,
			Timestamp: e.now(),
			Text:      assistant.TextContent(),
		})
		for _, call := range toolCalls {
			session.AppendEntry(turn.HistoryEntry{
				Kind:       turn.HistoryEntryToolCall,
				Timestamp:  e.now(),
				ToolCallID: call.ID,
				ToolName:   call.Name,
				ToolArgs:   call.Arguments,
			})
		}

		if len(toolCalls) == 0 {
			result.Outcome = turn.TurnOutcomeTextOnly
			e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventTurnComplete})
			return result, nil
		}

		if guard.Observe(toolCalls) {
			e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventDoomLoopDetected})
			result.Outcome = turn.TurnOutcomeDoomLoopDetected
			return result, turn.ErrDoomLoopDetected
		}

		for _, call := range toolCalls {
			e.publish(ctx, eventSink, turn.Event{
				AgentName:  agentName,
				Type:       turn.EventToolCallStart,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				ToolArgs:   call.Arguments,
			})

			if cancel != nil && cancel.Triggered() {
				e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventCancelled})
				result.Outcome = turn.TurnOutcomeCancelled
				return result, nil
			}

			startedAt := e.now()
			toolResult, filesChanged := e.invokeTool(ctx, session, agentName, call, cancel)
			endedAt := e.now()

			session.AppendEntry(turn.HistoryEntry{
				Kind:         turn.HistoryEntryToolResult,
				Timestamp:    endedAt,
				ToolCallID:   call.ID,
				ToolName:     call.Name,
				ToolStatus:   toolResult.Status,
				ToolOutput:   toolResult.Output,
				ToolMetadata: toolResult.Metadata,
			})

			e.publish(ctx, eventSink, turn.Event{
				AgentName:  agentName,
				Type:       turn.EventToolCallEnd,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				ToolArgs:   call.Arguments,
				ToolResult: &toolResult,
			})

			result.ExecutedToolCalls = append(result.ExecutedToolCalls, turn.ToolCallRecord{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
				StartedAt: startedAt.UnixMilli(),
				EndedAt:   endedAt.UnixMilli(),
				Status:    toolResult.Status,
				Output:    toolResult.Output,
				Metadata:  toolResult.Metadata,
			})
			result.FilesChanged = appendUnique(result.FilesChanged, filesChanged...)

			if call.Name == turn.TaskCompleteToolName && toolResult.Status == turn.ToolStatusSuccess {
				summary := turn.TaskCompleteSummary(call.Arguments)
				result.TaskComplete = &summary
				result.Outcome = turn.TurnOutcomeTaskComplete
				e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventTaskComplete, TaskSummary: summary})
				return result, nil
			}
		}
	}

	e.publish(ctx, eventSink, turn.Event{AgentName: agentName, Type: turn.EventError, Message: turn.ErrIterationLimitExceeded.Error()})
	result.Outcome = turn.TurnOutcomeIterationLimit
	return result, turn.ErrIterationLimitExceeded
}

func (e *ReactEngine) invokeTool(ctx context.Context, session *turn.InternalSession, agentName string, call turn.ToolCall, cancel *turn.CancelHandle) (turn.ToolResult, []string) {
	tc := turn.ToolContext{
		SessionID: session.ID,
		AgentName: agentName,
		CallID:    call.ID,
		Cancel:    cancel,
	}

	toolCtx := ctx
	var cancelDerived context.CancelFunc
	if cancel != nil {
		toolCtx, cancelDerived = cancel.WithCancel(ctx)
		defer cancelDerived()
	}

	result, err := e.tools.Execute(toolCtx, call, tc)
	if err != nil {
		if isCancellation(toolCtx, cancel, err) {
			return turn.ToolResult{CallID: call.ID, Name: call.Name, Status: turn.ToolStatusCancelled, Output: "(cancelled)"}, nil
		}
		return turn.ToolResult{CallID: call.ID, Name: call.Name, Status: turn.ToolStatusError, Output: err.Error()}, nil
	}
	if result.CallID == "" {
		result.CallID = call.ID
	}
	if result.Name == "" {
		result.Name = call.Name
	}
	if result.Status == "" {
		result.Status = turn.ToolStatusSuccess
	}
	return result, result.Metadata.FilesChanged
}

func (e *ReactEngine) forwardChunk(ctx context.Context, sink turn.EventSink, agentName string, chunk turn.StreamChunk) error {
	switch chunk.Kind {
	case turn.StreamChunkTextDelta:
		return e.publish(ctx, sink, turn.Event{AgentName: agentName, Type: turn.EventTextDelta, Text: chunk.TextDelta})
	case turn.StreamChunkReasoningDelta:
		return e.publish(ctx, sink, turn.Event{AgentName: agentName, Type: turn.EventReasoningDelta, Text: chunk.ReasoningDelta})
	default:
		return nil
	}
}

func (e *ReactEngine) publish(ctx context.Context, sink turn.EventSink, event turn.Event) error {
	if err := turn.ValidateEvent(event); err != nil {
		return err
	}
	if err := sink.Publish(ctx, event); err != nil {
		return errors.Join(turn.ErrEventPublish, err)
	}
	return nil
}

func isCancellation(ctx context.Context, cancel *turn.CancelHandle, err error) bool {
	if cancel != nil && cancel.Triggered() {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func toToolCalls(blocks []turn.ContentBlock) []turn.ToolCall {
	out := make([]turn.ToolCall, len(blocks))
	for i, block := range blocks {
		out[i] = turn.ToolCall{ID: block.ToolCallID, Name: block.ToolName, Arguments: block.ToolArgs}
	}
	return out
}

func validateToolCallShape(calls []turn.ToolCall) error {
	seen := make(map[string]int, len(calls))
	for i, call := range calls {
		if call.ID == "" {
			return fmt.Errorf("%w: index=%d reason=empty_id", turn.ErrToolCallInvalid, i)
		}
		if call.Name == "" {
			return fmt.Errorf("%w: index=%d id=%q reason=empty_name", turn.ErrToolCallInvalid, i, call.ID)
		}
		if firstIndex, exists := seen[call.ID]; exists {
			return fmt.Errorf("%w: index=%d id=%q reason=duplicate_id first_index=%d", turn.ErrToolCallInvalid, i, call.ID, firstIndex)
		}
		seen[call.ID] = i
	}
	return nil
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, d := range dst {
		seen[d] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}
