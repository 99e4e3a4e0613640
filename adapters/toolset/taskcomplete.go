package toolset

import (
	"context"

	"github.com/relaycore/turnkit/turn"
)

type taskCompleteArgs struct {
	Summary string `json:"summary" jsonschema:"required,description=Short summary of what was accomplished."`
}

// TaskCompleteTool lets an agent declare its turn finished. The engine
// reads the summary from the tool call's arguments and publishes it as
// turn.Event.TaskSummary; the tool itself only has to echo the summary
// back as its output.
type TaskCompleteTool struct{}

var _ turn.Tool = TaskCompleteTool{}

func (TaskCompleteTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        turn.TaskCompleteToolName,
		Description: "Declare the current task complete, with a short summary of the outcome.",
		InputSchema: schemaFor(&taskCompleteArgs{}),
	}
}

func (TaskCompleteTool) Invoke(_ context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	summary := turn.TaskCompleteSummary(arguments)
	return turn.ToolResult{
		CallID: tc.CallID,
		Name:   turn.TaskCompleteToolName,
		Status: turn.ToolStatusSuccess,
		Output: summary,
	}, nil
}
