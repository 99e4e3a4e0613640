package toolset

import (
	"context"
	"fmt"

	"github.com/relaycore/turnkit/turn"
)

type todoWriteItemArgs struct {
	Content    string `json:"content" jsonschema:"required"`
	Status     string `json:"status" jsonschema:"required,enum=pending,enum=in_progress,enum=completed,enum=cancelled"`
	ActiveForm string `json:"active_form,omitempty"`
}

type todoWriteArgs struct {
	Todos []todoWriteItemArgs `json:"todos" jsonschema:"required,description=The full task list, replacing whatever was there before."`
}

// TodoWriteTool overwrites the shared todo list a session's agents plan
// against. Both the primary and co-agent see the same list, so either
// side's write is immediately visible to the other.
type TodoWriteTool struct {
	List *turn.TodoList
}

var _ turn.Tool = TodoWriteTool{}

func (TodoWriteTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        "todo_write",
		Description: "Replace the current task list with a new, fully up to date one.",
		InputSchema: schemaFor(&todoWriteArgs{}),
	}
}

func (t TodoWriteTool) Invoke(_ context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	raw, ok := arguments["todos"].([]any)
	if !ok {
		return errorResult(tc.CallID, "todo_write", fmt.Errorf("%w: argument %q must be an array", ErrArgumentInvalid, "todos")), nil
	}

	items := make([]turn.TodoItem, 0, len(raw))
	for i, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			return errorResult(tc.CallID, "todo_write", fmt.Errorf("%w: todos[%d] must be an object", ErrArgumentInvalid, i)), nil
		}
		content, _ := fields["content"].(string)
		status, _ := fields["status"].(string)
		if content == "" || status == "" {
			return errorResult(tc.CallID, "todo_write", fmt.Errorf("%w: todos[%d] requires content and status", ErrArgumentInvalid, i)), nil
		}
		activeForm, _ := fields["active_form"].(string)
		items = append(items, turn.TodoItem{
			Content:    content,
			Status:     turn.TodoStatus(status),
			ActiveForm: activeForm,
		})
	}

	t.List.Replace(items)

	return turn.ToolResult{
		CallID: tc.CallID,
		Name:   "todo_write",
		Status: turn.ToolStatusSuccess,
		Output: fmt.Sprintf("todo_ok items=%d", len(items)),
	}, nil
}
