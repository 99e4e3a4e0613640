package toolset

import (
	"context"
	"fmt"
	"os"

	"github.com/relaycore/turnkit/turn"
)

type readFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Workspace-relative or absolute path to read."`
}

// ReadFileTool reads a UTF-8 text file within the workspace root.
type ReadFileTool struct {
	Policy WorkspacePolicy
}

var _ turn.Tool = ReadFileTool{}

func (ReadFileTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        "read_file",
		Description: "Read a UTF-8 text file within the workspace root.",
		InputSchema: schemaFor(&readFileArgs{}),
	}
}

func (t ReadFileTool) Invoke(_ context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	path, err := stringArgument(arguments, "path")
	if err != nil {
		return errorResult(tc.CallID, "read_file", err), nil
	}

	resolved, err := t.Policy.ResolvePath(path)
	if err != nil {
		return errorResult(tc.CallID, "read_file", err), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return errorResult(tc.CallID, "read_file", fmt.Errorf("read %q: %w", path, err)), nil
	}
	if info.IsDir() {
		return errorResult(tc.CallID, "read_file", fmt.Errorf("read %q: path is a directory", path)), nil
	}
	if info.Size() > t.Policy.maxReadBytes {
		return errorResult(tc.CallID, "read_file", fmt.Errorf("read %q: size %d exceeds limit %d", path, info.Size(), t.Policy.maxReadBytes)), nil
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return errorResult(tc.CallID, "read_file", fmt.Errorf("read %q: %w", path, err)), nil
	}

	return turn.ToolResult{CallID: tc.CallID, Name: "read_file", Status: turn.ToolStatusSuccess, Output: string(content)}, nil
}

// errorResult builds the synthetic tool-result a tool error produces:
// never fatal to the turn, the model sees the text and may recover.
func errorResult(callID, name string, err error) turn.ToolResult {
	return turn.ToolResult{CallID: callID, Name: name, Status: turn.ToolStatusError, Output: err.Error()}
}
