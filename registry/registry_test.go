package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/relaycore/turnkit/registry"
	"github.com/relaycore/turnkit/turn"
)

type echoTool struct{ name string }

func (t echoTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{Name: t.name, Description: "echoes its command argument"}
}

func (t echoTool) Invoke(_ context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	command, _ := arguments["command"].(string)
	return turn.ToolResult{CallID: tc.CallID, Name: t.name, Status: turn.ToolStatusSuccess, Output: command}, nil
}

func extractCommand(arguments map[string]any) (string, bool) {
	command, ok := arguments["command"].(string)
	return command, ok && command != ""
}

func TestCatalogFiltersByAgentPermissions(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.RegisterTool(echoTool{name: "terminal"})
	reg.RegisterTool(echoTool{name: "read_file"})
	reg.SetPermissions("primary", registry.AgentPermissions{
		Tools: map[string]registry.Permission{"terminal": registry.PermissionAllow, "read_file": registry.PermissionAllow},
	})
	reg.SetPermissions("coagent", registry.AgentPermissions{
		Tools: map[string]registry.Permission{"read_file": registry.PermissionAllow},
	})

	if got := len(reg.Catalog("primary")); got != 2 {
		t.Fatalf("primary catalog length: got=%d want=2", got)
	}
	if got := reg.Catalog("coagent"); len(got) != 1 || got[0].Name != "read_file" {
		t.Fatalf("coagent catalog mismatch: %+v", got)
	}
	if got := reg.Catalog("stranger"); len(got) != 0 {
		t.Fatalf("unknown agent should see an empty catalog, got %+v", got)
	}
}

func TestExecuteDeniesUnregisteredTool(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	_, err := reg.Execute(context.Background(), turn.ToolCall{Name: "ghost"}, turn.ToolContext{AgentName: "primary"})
	if !errors.Is(err, registry.ErrToolUnregistered) {
		t.Fatalf("expected ErrToolUnregistered, got %v", err)
	}
}

func TestExecuteDeniesToolNotGrantedToAgent(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.RegisterTool(echoTool{name: "terminal"})
	reg.SetPermissions("coagent", registry.AgentPermissions{})

	_, err := reg.Execute(context.Background(), turn.ToolCall{Name: "terminal"}, turn.ToolContext{AgentName: "coagent"})
	if !errors.Is(err, registry.ErrToolDenied) {
		t.Fatalf("expected ErrToolDenied, got %v", err)
	}
}

func TestExecuteEnforcesCommandPatterns(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.RegisterTool(echoTool{name: "terminal"})
	reg.RegisterCommandExtractor("terminal", extractCommand)
	reg.SetPermissions("primary", registry.AgentPermissions{
		Tools: map[string]registry.Permission{"terminal": registry.PermissionAllow},
		CommandPatterns: []registry.CommandPattern{
			{Pattern: "rm *", Permission: registry.PermissionDeny},
			{Pattern: "*", Permission: registry.PermissionAllow},
		},
	})

	result, err := reg.Execute(context.Background(), turn.ToolCall{Name: "terminal", Arguments: map[string]any{"command": "ls -la"}}, turn.ToolContext{AgentName: "primary"})
	if err != nil {
		t.Fatalf("expected allowed command to execute, got %v", err)
	}
	if result.Output != "ls -la" {
		t.Fatalf("unexpected output: %q", result.Output)
	}

	_, err = reg.Execute(context.Background(), turn.ToolCall{Name: "terminal", Arguments: map[string]any{"command": "rm -rf /"}}, turn.ToolContext{AgentName: "primary"})
	if !errors.Is(err, registry.ErrCommandDenied) {
		t.Fatalf("expected ErrCommandDenied, got %v", err)
	}
}

func TestRegisterToolReplacesInPlace(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.RegisterTool(echoTool{name: "a"})
	reg.RegisterTool(echoTool{name: "b"})
	reg.RegisterTool(echoTool{name: "a"}) // re-register, should keep position 0
	reg.SetPermissions("primary", registry.AgentPermissions{
		Tools: map[string]registry.Permission{"a": registry.PermissionAllow, "b": registry.PermissionAllow},
	})

	catalog := reg.Catalog("primary")
	if len(catalog) != 2 || catalog[0].Name != "a" || catalog[1].Name != "b" {
		t.Fatalf("expected [a, b] in original order, got %+v", catalog)
	}
}
