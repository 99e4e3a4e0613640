package toolset

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/relaycore/turnkit/turn"
)

type editFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Workspace-relative or absolute path to edit."`
	Old  string `json:"old" jsonschema:"required,description=Exact text to replace; only its first occurrence is replaced."`
	New  string `json:"new" jsonschema:"required,description=Replacement text."`
}

// EditFileTool replaces the first occurrence of old text with new text
// in a file within the workspace root, recording a pre-image through
// the tool context's snapshot hook before writing.
type EditFileTool struct {
	Policy WorkspacePolicy
}

var _ turn.Tool = EditFileTool{}

func (EditFileTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace the first occurrence of old text with new text in a file within the workspace root.",
		InputSchema: schemaFor(&editFileArgs{}),
	}
}

func (t EditFileTool) Invoke(ctx context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	path, err := stringArgument(arguments, "path")
	if err != nil {
		return errorResult(tc.CallID, "edit_file", err), nil
	}
	oldValue, err := stringArgument(arguments, "old")
	if err != nil {
		return errorResult(tc.CallID, "edit_file", err), nil
	}
	newValue, ok := arguments["new"].(string)
	if !ok {
		return errorResult(tc.CallID, "edit_file", fmt.Errorf("%w: argument %q must be a string", ErrArgumentInvalid, "new")), nil
	}

	resolved, err := t.Policy.ResolvePath(path)
	if err != nil {
		return errorResult(tc.CallID, "edit_file", err), nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return errorResult(tc.CallID, "edit_file", fmt.Errorf("edit %q: read: %w", path, err)), nil
	}
	content := string(raw)
	if !strings.Contains(content, oldValue) {
		return errorResult(tc.CallID, "edit_file", fmt.Errorf("edit %q: target text not found", path)), nil
	}

	if tc.Snapshot != nil {
		if err := tc.Snapshot(ctx, resolved, raw); err != nil {
			return errorResult(tc.CallID, "edit_file", fmt.Errorf("edit %q: snapshot: %w", path, err)), nil
		}
	}

	updated := strings.Replace(content, oldValue, newValue, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return errorResult(tc.CallID, "edit_file", fmt.Errorf("edit %q: write: %w", path, err)), nil
	}

	return turn.ToolResult{
		CallID:   tc.CallID,
		Name:     "edit_file",
		Status:   turn.ToolStatusSuccess,
		Output:   fmt.Sprintf("edit_ok path=%s replacements=1", path),
		Metadata: turn.ToolMetadata{FilesChanged: []string{resolved}},
	}, nil
}
