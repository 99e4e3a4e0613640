package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaycore/turnkit/adapters/toolset"
	"github.com/relaycore/turnkit/composite"
	"github.com/relaycore/turnkit/config"
	"github.com/relaycore/turnkit/registry"
	"github.com/relaycore/turnkit/turn"
)

func testPolicy(t *testing.T) toolset.WorkspacePolicy {
	t.Helper()
	policy, err := toolset.NewWorkspacePolicy(t.TempDir(), toolset.DefaultTerminalTimeout)
	if err != nil {
		t.Fatalf("new workspace policy: %v", err)
	}
	return policy
}

func TestBuildRegistryGrantsPrimaryTheFullCatalog(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(testPolicy(t))
	catalog := reg.Catalog(primaryAgentName)

	wantNames := map[string]bool{
		"read_file": false, "edit_file": false, "terminal": false,
		"grep": false, "find_path": false, "task_complete": false, "todo_write": false,
	}
	for _, def := range catalog {
		if _, ok := wantNames[def.Name]; ok {
			wantNames[def.Name] = true
		}
	}
	for name, seen := range wantNames {
		if !seen {
			t.Errorf("expected primary catalog to include %q", name)
		}
	}
}

func TestBuildRegistryRestrictsCoagentToReadOnlySubset(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(testPolicy(t))
	catalog := reg.Catalog(coagentAgentName)

	got := make(map[string]bool)
	for _, def := range catalog {
		got[def.Name] = true
	}
	for _, want := range []string{"read_file", "grep", "find_path", "todo_write"} {
		if !got[want] {
			t.Errorf("expected coagent catalog to include %q", want)
		}
	}
	for _, forbidden := range []string{"edit_file", "terminal", "task_complete"} {
		if got[forbidden] {
			t.Errorf("expected coagent catalog to exclude %q", forbidden)
		}
	}
}

func TestBuildRegistryDeniesRmForPrimary(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(testPolicy(t))

	call := turn.ToolCall{ID: "call-1", Name: "terminal", Arguments: map[string]any{"command": "rm -rf /tmp/x"}}
	tc := turn.ToolContext{SessionID: "s1", AgentName: primaryAgentName, CallID: call.ID}
	_, err := reg.Execute(context.Background(), call, tc)
	if !errors.Is(err, registry.ErrCommandDenied) {
		t.Fatalf("expected rm to be denied, got %v", err)
	}
}

func TestCoagentPolicyExcludesTerminationAndCarriesCoagentCatalog(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(testPolicy(t))
	policy := coagentPolicy(reg)

	if policy.Kind != composite.PolicyCoagent {
		t.Fatalf("expected PolicyCoagent, got %v", policy.Kind)
	}
	if policy.CoagentCanTerminate {
		t.Fatalf("expected the coagent to be denied termination rights")
	}
	if len(policy.CoagentTools) == 0 {
		t.Fatalf("expected the coagent policy to carry the coagent catalog")
	}
}

func TestBuildModelMockModeReturnsMockModel(t *testing.T) {
	t.Parallel()

	model, provider, name, err := buildModel(config.ModelModeMock, config.Config{})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if model == nil || provider != "mock" || name != "mock" {
		t.Fatalf("unexpected mock model build: provider=%q name=%q model=%v", provider, name, model)
	}
}

func TestBuildModelProviderModeRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, _, _, err := buildModel(config.ModelModeProvider, config.Config{ProviderModel: "gpt-4.1-mini"})
	if err == nil {
		t.Fatalf("expected an error when the provider API key is missing")
	}
}

func TestBuildModelProviderModeSucceedsWithCredentials(t *testing.T) {
	t.Parallel()

	cfg := config.Config{ProviderAPIKey: "sk-test", ProviderModel: "gpt-4.1-mini", ProviderTimeout: 30 * time.Second}
	model, provider, name, err := buildModel(config.ModelModeProvider, cfg)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if model == nil || provider != "openai" || name != "gpt-4.1-mini" {
		t.Fatalf("unexpected provider model build: provider=%q name=%q model=%v", provider, name, model)
	}
}

func TestBuildModelRejectsUnsupportedMode(t *testing.T) {
	t.Parallel()

	_, _, _, err := buildModel(config.ModelMode("bogus"), config.Config{})
	if err == nil {
		t.Fatalf("expected an error for an unsupported model mode")
	}
}
