// Package composite drives a multi-turn session between one primary
// agent and optionally one co-agent, applying a declared control-flow
// policy, and presents a single unified event stream to its caller.
package composite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaycore/turnkit/turn"
)

// Orchestrator wires together the turn engines used to drive a
// composite session. The same primary engine instance may be reused
// across sessions; it is stateless beyond its model and tool executor.
type Orchestrator struct {
	primaryEngine turn.Engine
	coagentEngine turn.Engine
	model         turn.Model // only consulted for PolicyGenerated
	now           func() time.Time
}

// New constructs an Orchestrator. coagentEngine and model may be nil if
// the caller never runs PolicyCoagent or PolicyGenerated sessions.
func New(primaryEngine, coagentEngine turn.Engine, model turn.Model) (*Orchestrator, error) {
	if primaryEngine == nil {
		return nil, ErrMissingPrimaryEngine
	}
	return &Orchestrator{primaryEngine: primaryEngine, coagentEngine: coagentEngine, model: model, now: time.Now}, nil
}

// WithClock overrides the orchestrator's time source, for deterministic tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	if now != nil {
		o.now = now
	}
	return o
}

// Run drives the composite session to a terminal outcome (or to
// NeedsInput, for PolicyPassthrough) according to its configured policy.
func (o *Orchestrator) Run(ctx context.Context, session *Session, primaryTools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (RunResult, error) {
	if ctx == nil {
		return RunResult{}, turn.ErrContextNil
	}
	if session == nil {
		return RunResult{}, ErrSessionNil
	}
	if eventSink == nil {
		eventSink = turn.NoopEventSink{}
	}

	switch session.Policy.Kind {
	case PolicyPassthrough:
		return o.runPassthrough(ctx, session, primaryTools, eventSink, cancel)
	case PolicyLoop:
		return o.runLoop(ctx, session, primaryTools, eventSink, cancel)
	case PolicyStatic:
		return o.runInjected(ctx, session, primaryTools, eventSink, cancel, session.Policy.StaticMessage)
	case PolicyGenerated:
		return o.runGenerated(ctx, session, primaryTools, eventSink, cancel)
	case PolicyCoagent:
		return o.runCoagent(ctx, session, primaryTools, eventSink, cancel)
	default:
		return RunResult{Outcome: OutcomeError, Reason: fmt.Sprintf("unknown policy: %s", session.Policy.Kind)}, nil
	}
}

func (o *Orchestrator) runPassthrough(ctx context.Context, session *Session, tools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (RunResult, error) {
	_, result, err := o.executePrimaryTurn(ctx, session, tools, eventSink, cancel)
	if err != nil {
		return classifyErr(err)
	}
	if result.Outcome == turn.TurnOutcomeCancelled {
		return RunResult{Outcome: OutcomeCancelled}, nil
	}
	return RunResult{Outcome: OutcomeNeedsInput}, nil
}

func (o *Orchestrator) runLoop(ctx context.Context, session *Session, tools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (RunResult, error) {
	for {
		taskComplete, result, err := o.executePrimaryTurn(ctx, session, tools, eventSink, cancel)
		if err != nil {
			return classifyErr(err)
		}
		if result.Outcome == turn.TurnOutcomeCancelled {
			return RunResult{Outcome: OutcomeCancelled}, nil
		}
		if taskComplete != "" {
			return RunResult{Outcome: OutcomeComplete, Summary: taskComplete}, nil
		}
	}
}

func (o *Orchestrator) runInjected(ctx context.Context, session *Session, tools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle, message string) (RunResult, error) {
	for {
		taskComplete, result, err := o.executePrimaryTurn(ctx, session, tools, eventSink, cancel)
		if err != nil {
			return classifyErr(err)
		}
		if result.Outcome == turn.TurnOutcomeCancelled {
			return RunResult{Outcome: OutcomeCancelled}, nil
		}
		if taskComplete != "" {
			return RunResult{Outcome: OutcomeComplete, Summary: taskComplete}, nil
		}
		session.Primary.AppendEntry(turn.HistoryEntry{Kind: turn.HistoryEntryUserMessage, Timestamp: o.now(), Text: message})
	}
}

func (o *Orchestrator) runGenerated(ctx context.Context, session *Session, tools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (RunResult, error) {
	if !session.generatedMessageOK {
		if o.model == nil {
			return RunResult{}, ErrMissingModel
		}
		originalTask := originalTaskText(session.Primary.History())
		request := turn.ModelRequest{Messages: []turn.Message{
			{Role: turn.RoleUser, Content: []turn.ContentBlock{{Kind: turn.ContentBlockText, Text: session.Policy.GeneratedPrompt + "\n\n" + originalTask}}},
		}}
		generated, _, err := o.model.Generate(ctx, request, func(turn.StreamChunk) error { return nil })
		if err != nil {
			return RunResult{}, err
		}
		session.generatedMessage = generated.TextContent()
		session.generatedMessageOK = true
	}
	return o.runInjected(ctx, session, tools, eventSink, cancel, session.generatedMessage)
}

func (o *Orchestrator) runCoagent(ctx context.Context, session *Session, primaryTools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (RunResult, error) {
	if o.coagentEngine == nil {
		return RunResult{}, ErrMissingCoagentEngine
	}
	if session.Coagent == nil {
		return RunResult{}, ErrCoagentMissing
	}

	coagentTools := coagentCatalog(session.Policy)

	turns := 0
	for turns < MaxCompositeTurns {
		primaryTaskComplete, primaryResult, err := o.executePrimaryTurn(ctx, session, primaryTools, eventSink, cancel)
		if err != nil {
			return classifyErr(err)
		}
		if primaryResult.Outcome == turn.TurnOutcomeCancelled {
			return RunResult{Outcome: OutcomeCancelled}, nil
		}
		if primaryTaskComplete != "" {
			return RunResult{Outcome: OutcomeComplete, Summary: primaryTaskComplete}, nil
		}
		turns++
		if turns >= MaxCompositeTurns {
			break
		}

		session.Coagent.AppendEntry(turn.HistoryEntry{Kind: turn.HistoryEntryUserMessage, Timestamp: o.now(), Text: roleFlipMessage(primaryResult)})

		coagentResult, err := o.coagentEngine.ExecuteTurn(ctx, session.Coagent, coagentTools, eventSink, cancel)
		if err != nil {
			return classifyErr(err)
		}
		if coagentResult.Outcome == turn.TurnOutcomeCancelled {
			return RunResult{Outcome: OutcomeCancelled}, nil
		}
		if session.Policy.CoagentCanTerminate && coagentResult.TaskComplete != nil {
			return RunResult{Outcome: OutcomeComplete, Summary: *coagentResult.TaskComplete}, nil
		}
		turns++

		session.Primary.AppendEntry(turn.HistoryEntry{Kind: turn.HistoryEntryUserMessage, Timestamp: o.now(), Text: roleFlipMessage(coagentResult)})
	}

	return RunResult{Outcome: OutcomeError, Reason: "composite turn limit"}, ErrCompositeTurnLimit
}

// coagentCatalog removes task_complete from the co-agent's tool catalog
// when the policy does not let the co-agent terminate the run.
func coagentCatalog(policy Policy) []turn.ToolDefinition {
	if policy.CoagentCanTerminate {
		return turn.CloneToolDefinitions(policy.CoagentTools)
	}
	out := make([]turn.ToolDefinition, 0, len(policy.CoagentTools))
	for _, def := range policy.CoagentTools {
		if def.Name == turn.TaskCompleteToolName {
			continue
		}
		out = append(out, def)
	}
	return out
}

func (o *Orchestrator) executePrimaryTurn(ctx context.Context, session *Session, tools []turn.ToolDefinition, eventSink turn.EventSink, cancel *turn.CancelHandle) (string, turn.TurnResult, error) {
	result, err := o.primaryEngine.ExecuteTurn(ctx, session.Primary, tools, eventSink, cancel)
	if err != nil {
		return "", result, err
	}
	if result.TaskComplete != nil {
		return *result.TaskComplete, result, nil
	}
	return "", result, nil
}

func originalTaskText(history []turn.HistoryEntry) string {
	for _, entry := range history {
		if entry.Kind == turn.HistoryEntryUserMessage {
			return entry.Text
		}
	}
	return ""
}

func classifyErr(err error) (RunResult, error) {
	if errors.Is(err, turn.ErrDoomLoopDetected) || errors.Is(err, turn.ErrIterationLimitExceeded) {
		return RunResult{Outcome: OutcomeError, Reason: err.Error()}, err
	}
	return RunResult{Outcome: OutcomeError, Reason: err.Error()}, err
}
