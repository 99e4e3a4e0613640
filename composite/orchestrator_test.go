package composite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/turnkit/composite"
	"github.com/relaycore/turnkit/turn"
)

// scriptedEngine returns its queued results in order, one per
// ExecuteTurn call, repeating the last one once the queue is used up;
// calls counts the queued results handed out so far.
type scriptedEngine struct {
	results []turn.TurnResult
	err     error
	calls   int
}

func (e *scriptedEngine) ExecuteTurn(_ context.Context, session *turn.InternalSession, _ []turn.ToolDefinition, _ turn.EventSink, _ *turn.CancelHandle) (turn.TurnResult, error) {
	if e.err != nil {
		return turn.TurnResult{}, e.err
	}
	if e.calls >= len(e.results) {
		return e.results[len(e.results)-1], nil
	}
	result := e.results[e.calls]
	e.calls++
	return result, nil
}

func taskComplete(summary string) *string { return &summary }

func newIdentities() (turn.AgentIdentity, turn.AgentIdentity) {
	return turn.AgentIdentity{Name: "primary", Role: "primary"}, turn.AgentIdentity{Name: "coagent", Role: "coagent"}
}

func TestRunPassthroughReturnsNeedsInputAfterOneTurn(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{{Outcome: turn.TurnOutcomeTextOnly, Text: "hi"}}}
	orch, err := composite.New(primary, nil, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyPassthrough}, primaryAgent, coagentAgent, time.Now())

	result, err := orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.NoError(t, err)
	require.Equal(t, composite.OutcomeNeedsInput, result.Outcome)
	require.Equal(t, 1, primary.calls)
}

func TestRunLoopStopsOnTaskComplete(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{
		{Outcome: turn.TurnOutcomeTextOnly, Text: "still working"},
		{Outcome: turn.TurnOutcomeTaskComplete, TaskComplete: taskComplete("all done")},
	}}
	orch, err := composite.New(primary, nil, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyLoop}, primaryAgent, coagentAgent, time.Now())

	result, err := orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.NoError(t, err)
	require.Equal(t, composite.OutcomeComplete, result.Outcome)
	require.Equal(t, "all done", result.Summary)
	require.Equal(t, 2, primary.calls)
}

func TestRunStaticInjectsMessageBetweenTurns(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{
		{Outcome: turn.TurnOutcomeTextOnly},
		{Outcome: turn.TurnOutcomeTaskComplete, TaskComplete: taskComplete("done")},
	}}
	orch, err := composite.New(primary, nil, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyStatic, StaticMessage: "keep going"}, primaryAgent, coagentAgent, time.Now())

	_, err = orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.NoError(t, err)

	history := session.Primary.History()
	var sawInjected bool
	for _, entry := range history {
		if entry.Kind == turn.HistoryEntryUserMessage && entry.Text == "keep going" {
			sawInjected = true
		}
	}
	require.True(t, sawInjected, "expected the static message to be injected into primary history")
}

func TestRunCoagentAlternatesAndRespectsTerminationPolicy(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{{Outcome: turn.TurnOutcomeTextOnly, Text: "primary turn"}}}
	coagent := &scriptedEngine{results: []turn.TurnResult{{Outcome: turn.TurnOutcomeTaskComplete, TaskComplete: taskComplete("coagent says done")}}}

	orch, err := composite.New(primary, coagent, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	policy := composite.Policy{
		Kind:                composite.PolicyCoagent,
		CoagentTools:        []turn.ToolDefinition{{Name: turn.TaskCompleteToolName}, {Name: "read_file"}},
		CoagentCanTerminate: true,
	}
	session := composite.NewSession("s1", policy, primaryAgent, coagentAgent, time.Now())

	result, err := orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.NoError(t, err)
	require.Equal(t, composite.OutcomeComplete, result.Outcome)
	require.Equal(t, "coagent says done", result.Summary)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, coagent.calls)

	coagentHistory := session.Coagent.History()
	require.NotEmpty(t, coagentHistory)
	require.Contains(t, coagentHistory[0].Text, "primary turn")
}

func TestRunCoagentWithoutTerminationKeepsAlternatingUntilPrimaryCompletes(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{
		{Outcome: turn.TurnOutcomeTextOnly, Text: "turn 1"},
		{Outcome: turn.TurnOutcomeTaskComplete, TaskComplete: taskComplete("primary finished")},
	}}
	coagent := &scriptedEngine{results: []turn.TurnResult{{Outcome: turn.TurnOutcomeTaskComplete, TaskComplete: taskComplete("coagent tried to end it")}}}

	orch, err := composite.New(primary, coagent, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	policy := composite.Policy{
		Kind:                composite.PolicyCoagent,
		CoagentTools:        []turn.ToolDefinition{{Name: turn.TaskCompleteToolName}},
		CoagentCanTerminate: false,
	}
	session := composite.NewSession("s1", policy, primaryAgent, coagentAgent, time.Now())

	result, err := orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.NoError(t, err)
	require.Equal(t, composite.OutcomeComplete, result.Outcome)
	require.Equal(t, "primary finished", result.Summary)
	require.Equal(t, 2, primary.calls)
}

func TestRunCoagentRequiresCoagentSession(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{{Outcome: turn.TurnOutcomeTextOnly}}}
	coagent := &scriptedEngine{}
	orch, err := composite.New(primary, coagent, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	// PolicyLoop never allocates a Coagent session; reuse its Primary but
	// force the policy to PolicyCoagent to exercise the missing-session guard.
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyLoop}, primaryAgent, coagentAgent, time.Now())
	session.Policy = composite.Policy{Kind: composite.PolicyCoagent}

	_, err = orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.ErrorIs(t, err, composite.ErrCoagentMissing)
}

func TestRunPropagatesEngineErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	primary := &scriptedEngine{err: boom}
	orch, err := composite.New(primary, nil, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyLoop}, primaryAgent, coagentAgent, time.Now())

	result, err := orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, composite.OutcomeError, result.Outcome)
}

func TestRunRejectsNilContextAndSession(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{}
	orch, err := composite.New(primary, nil, nil)
	require.NoError(t, err)

	_, err = orch.Run(nil, &composite.Session{}, nil, turn.NoopEventSink{}, nil)
	require.ErrorIs(t, err, turn.ErrContextNil)

	_, err = orch.Run(context.Background(), nil, nil, turn.NoopEventSink{}, nil)
	require.ErrorIs(t, err, composite.ErrSessionNil)
}

type fakeModel struct {
	text string
}

func (m fakeModel) Generate(_ context.Context, _ turn.ModelRequest, onChunk func(turn.StreamChunk) error) (turn.Message, turn.Usage, error) {
	if err := onChunk(turn.StreamChunk{Kind: turn.StreamChunkTextDelta, TextDelta: m.text}); err != nil {
		return turn.Message{}, turn.Usage{}, err
	}
	return turn.Message{Role: turn.RoleAssistant, Content: []turn.ContentBlock{{Kind: turn.ContentBlockText, Text: m.text}}}, turn.Usage{}, nil
}

func TestRunGeneratedSynthesizesInjectedMessageOnce(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{
		{Outcome: turn.TurnOutcomeTextOnly},
		{Outcome: turn.TurnOutcomeTaskComplete, TaskComplete: taskComplete("done")},
	}}
	orch, err := composite.New(primary, nil, fakeModel{text: "keep pushing on the original task"})
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyGenerated, GeneratedPrompt: "remind them to finish"}, primaryAgent, coagentAgent, time.Now())
	session.Primary.AppendEntry(turn.HistoryEntry{Kind: turn.HistoryEntryUserMessage, Text: "build the feature"})

	_, err = orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.NoError(t, err)

	var sawGenerated bool
	for _, entry := range session.Primary.History() {
		if entry.Text == "keep pushing on the original task" {
			sawGenerated = true
		}
	}
	require.True(t, sawGenerated, "expected the model-generated message to be injected into primary history")
}

func TestRunGeneratedRequiresModel(t *testing.T) {
	t.Parallel()

	primary := &scriptedEngine{results: []turn.TurnResult{{Outcome: turn.TurnOutcomeTextOnly}}}
	orch, err := composite.New(primary, nil, nil)
	require.NoError(t, err)

	primaryAgent, coagentAgent := newIdentities()
	session := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyGenerated}, primaryAgent, coagentAgent, time.Now())

	_, err = orch.Run(context.Background(), session, nil, turn.NoopEventSink{}, nil)
	require.ErrorIs(t, err, composite.ErrMissingModel)
}

func TestNewRejectsNilPrimaryEngine(t *testing.T) {
	t.Parallel()

	_, err := composite.New(nil, nil, nil)
	require.ErrorIs(t, err, composite.ErrMissingPrimaryEngine)
}
