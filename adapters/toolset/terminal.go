package toolset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/relaycore/turnkit/turn"
)

type terminalArgs struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to run in the workspace root."`
}

// TerminalTool runs a bounded shell command in the workspace root.
// Command-prefix permission checks are enforced by the registry, using
// ExtractTerminalCommand as the CommandExtractor.
type TerminalTool struct {
	Policy WorkspacePolicy
}

var _ turn.Tool = TerminalTool{}

func (TerminalTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        "terminal",
		Description: "Run a shell command in the workspace root, bounded by a timeout.",
		InputSchema: schemaFor(&terminalArgs{}),
	}
}

// ExtractTerminalCommand pulls the raw command string out of a
// terminal tool call's arguments for command-pattern permission checks.
func ExtractTerminalCommand(arguments map[string]any) (string, bool) {
	command, ok := arguments["command"].(string)
	command = strings.TrimSpace(command)
	return command, ok && command != ""
}

func (t TerminalTool) Invoke(ctx context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	command, err := stringArgument(arguments, "command")
	if err != nil {
		return errorResult(tc.CallID, "terminal", err), nil
	}

	bounded, cancel := context.WithTimeout(ctx, t.Policy.TerminalTimeout())
	defer cancel()

	cmd := exec.CommandContext(bounded, "bash", "-lc", command)
	cmd.Dir = t.Policy.Root()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() != nil {
		return turn.ToolResult{CallID: tc.CallID, Name: "terminal", Status: turn.ToolStatusCancelled, Output: "(cancelled)"}, nil
	}
	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return errorResult(tc.CallID, "terminal", fmt.Errorf("terminal: command %q timed out after %s", command, t.Policy.TerminalTimeout())), nil
	}
	if runErr != nil {
		return errorResult(tc.CallID, "terminal", fmt.Errorf("terminal: command %q failed: %w stdout=%q stderr=%q", command, runErr, stdout.String(), stderr.String())), nil
	}

	return turn.ToolResult{
		CallID: tc.CallID,
		Name:   "terminal",
		Status: turn.ToolStatusSuccess,
		Output: fmt.Sprintf("stdout=%q stderr=%q", strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String())),
	}, nil
}
