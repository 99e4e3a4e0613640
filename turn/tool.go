package turn

import "context"

// ToolStatus is the terminal state of a tool execution.
type ToolStatus string

const (
	ToolStatusSuccess   ToolStatus = "success"
	ToolStatusError     ToolStatus = "error"
	ToolStatusCancelled ToolStatus = "cancelled"
)

// ToolMetadata carries optional side-channel information about a tool
// execution: which files it touched and how long it took.
type ToolMetadata struct {
	FilesChanged []string `json:"files_changed,omitempty"`
	DurationMS   int64    `json:"duration_ms,omitempty"`
}

// ToolDefinition declares a callable capability exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// CloneToolDefinitions returns deep copies of a tool-definition slice.
func CloneToolDefinitions(in []ToolDefinition) []ToolDefinition {
	out := make([]ToolDefinition, len(in))
	copy(out, in)
	return out
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the normalized outcome of one tool invocation.
type ToolResult struct {
	CallID   string       `json:"call_id"`
	Name     string        `json:"name"`
	Status   ToolStatus    `json:"status"`
	Output   string        `json:"output"`
	Metadata ToolMetadata  `json:"metadata,omitempty"`
}

// SnapshotHook is called by tools that mutate state, to record a pre-image
// before the mutation. The core treats its payload as opaque.
type SnapshotHook func(ctx context.Context, path string, preimage []byte) error

// ToolContext is passed to every tool invocation.
type ToolContext struct {
	SessionID  string
	AgentName  string
	CallID     string
	WorkingDir string
	Cancel     *CancelHandle
	Snapshot   SnapshotHook
}

// Tool is the abstraction the turn engine depends on for callable
// capabilities: a name, a description, a JSON Schema, and an invoker.
// Different tools are siblings behind this one interface; there is no
// inheritance hierarchy.
type Tool interface {
	Definition() ToolDefinition
	Invoke(ctx context.Context, arguments map[string]any, tc ToolContext) (ToolResult, error)
}

// ToolExecutor resolves a ToolCall by name and executes it, returning a
// normalized ToolResult. Implementations enforce per-agent permissions.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall, tc ToolContext) (ToolResult, error)
	Catalog(agentName string) []ToolDefinition
}

const TaskCompleteToolName = "task_complete"

// TaskCompleteSummary extracts the summary argument from a task_complete
// tool call's arguments, if present.
func TaskCompleteSummary(arguments map[string]any) string {
	if arguments == nil {
		return ""
	}
	summary, _ := arguments["summary"].(string)
	return summary
}
