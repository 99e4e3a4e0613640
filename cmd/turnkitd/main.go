// Command turnkitd is the JSON-RPC server that drives a turnkit
// composite session over stdin/stdout: one primary agent, an optional
// co-agent, and the fixed toolset.WorkspacePolicy-bounded tool catalog.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/relaycore/turnkit/adapters/mockmodel"
	"github.com/relaycore/turnkit/adapters/modelopenai"
	"github.com/relaycore/turnkit/adapters/toolset"
	"github.com/relaycore/turnkit/composite"
	"github.com/relaycore/turnkit/config"
	"github.com/relaycore/turnkit/idgen"
	"github.com/relaycore/turnkit/registry"
	"github.com/relaycore/turnkit/sessionrpc"
	"github.com/relaycore/turnkit/telemetry"
	"github.com/relaycore/turnkit/turn"
)

const (
	serverName    = "turnkitd"
	serverVersion = "0.1.0"

	primaryAgentName = "primary"
	coagentAgentName = "coagent"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("turnkitd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := telemetry.Open(filepath.Join(cfg.DataDir, "turnkit.db"))
	if err != nil {
		return fmt.Errorf("open telemetry store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("close telemetry store", "error", closeErr)
		}
	}()

	deps, err := buildDeps(cfg, store)
	if err != nil {
		return fmt.Errorf("build server deps: %w", err)
	}
	server := sessionrpc.New(deps)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("turnkitd ready",
		"model_mode", cfg.ModelMode,
		"coagent_mode", cfg.CoagentModel,
		"workspace_root", cfg.WorkspaceRoot,
		"policy", deps.Policy.Kind,
	)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.Serve(sigCtx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-serveErrCh:
		return err
	case <-sigCtx.Done():
		logger.Info("shutdown signal received, closing stdin to drain in-flight requests")
		_ = os.Stdin.Close()
		return <-serveErrCh
	}
}

func buildDeps(cfg config.Config, store telemetry.Store) (sessionrpc.Deps, error) {
	ids := idgen.NewUUIDGenerator()
	recorder := telemetry.NewRecorder(store, ids)

	policy, err := toolset.NewWorkspacePolicy(cfg.WorkspaceRoot, toolset.DefaultTerminalTimeout)
	if err != nil {
		return sessionrpc.Deps{}, fmt.Errorf("workspace policy: %w", err)
	}

	reg := buildRegistry(policy)

	primaryModel, primaryProvider, primaryModelName, err := buildModel(cfg.ModelMode, cfg)
	if err != nil {
		return sessionrpc.Deps{}, fmt.Errorf("primary model: %w", err)
	}

	coagentModel, coagentProvider, coagentModelName, err := buildModel(cfg.CoagentModel, cfg)
	if err != nil {
		return sessionrpc.Deps{}, fmt.Errorf("coagent model: %w", err)
	}

	return sessionrpc.Deps{
		PrimaryModel: primaryModel,
		CoagentModel: coagentModel,

		Tools:    reg,
		Recorder: recorder,
		IDs:      ids,
		Policy:   coagentPolicy(reg),

		Primary: sessionrpc.AgentConfig{
			Identity: turn.AgentIdentity{Name: primaryAgentName, Role: "primary"},
			Provider: primaryProvider,
			Model:    primaryModelName,
		},
		Coagent: sessionrpc.AgentConfig{
			Identity: turn.AgentIdentity{Name: coagentAgentName, Role: "coagent"},
			Provider: coagentProvider,
			Model:    coagentModelName,
		},

		MaxIterations:  cfg.MaxIterations,
		DoomLoopWindow: cfg.DoomLoopWindow,
		ObserveCoagent: cfg.ObserveCoagent,

		ServerName:    serverName,
		ServerVersion: serverVersion,
	}, nil
}

// buildRegistry wires the full toolset.WorkspacePolicy-bounded catalog:
// the primary agent gets everything, the co-agent gets the read-only
// subset (it can read and search files and update the todo list, but
// never runs commands, edits files, or completes the task on its own).
func buildRegistry(policy toolset.WorkspacePolicy) *registry.Registry {
	reg := registry.New()

	readFile := toolset.ReadFileTool{Policy: policy}
	editFile := toolset.EditFileTool{Policy: policy}
	terminal := toolset.TerminalTool{Policy: policy}
	grep := toolset.GrepTool{Policy: policy}
	findPath := toolset.FindPathTool{Policy: policy}
	taskComplete := toolset.TaskCompleteTool{}
	todoWrite := toolset.TodoWriteTool{List: turn.NewTodoList()}

	for _, tool := range []turn.Tool{readFile, editFile, terminal, grep, findPath, taskComplete, todoWrite} {
		reg.RegisterTool(tool)
	}
	reg.RegisterCommandExtractor(terminal.Definition().Name, toolset.ExtractTerminalCommand)

	const allow = registry.PermissionAllow
	reg.SetPermissions(primaryAgentName, registry.AgentPermissions{
		Tools: map[string]registry.Permission{
			readFile.Definition().Name:     allow,
			editFile.Definition().Name:     allow,
			terminal.Definition().Name:     allow,
			grep.Definition().Name:         allow,
			findPath.Definition().Name:     allow,
			taskComplete.Definition().Name: allow,
			todoWrite.Definition().Name:    allow,
		},
		CommandPatterns: []registry.CommandPattern{
			{Pattern: "rm *", Permission: registry.PermissionDeny},
			{Pattern: "*", Permission: registry.PermissionAllow},
		},
	})
	reg.SetPermissions(coagentAgentName, registry.AgentPermissions{
		Tools: map[string]registry.Permission{
			readFile.Definition().Name:  allow,
			grep.Definition().Name:      allow,
			findPath.Definition().Name:  allow,
			todoWrite.Definition().Name: allow,
		},
	})

	return reg
}

// coagentPolicy offers the co-agent its own restricted catalog under
// PolicyCoagent; it may not terminate the run, only the primary agent
// can.
func coagentPolicy(reg *registry.Registry) composite.Policy {
	return composite.Policy{
		Kind:                composite.PolicyCoagent,
		CoagentTools:        reg.Catalog(coagentAgentName),
		CoagentCanTerminate: false,
	}
}

func buildModel(mode config.ModelMode, cfg config.Config) (turn.Model, string, string, error) {
	switch mode {
	case config.ModelModeMock:
		return mockmodel.Model{}, "mock", "mock", nil
	case config.ModelModeProvider:
		adapter, err := modelopenai.New(modelopenai.Config{
			APIKey:  cfg.ProviderAPIKey,
			Model:   cfg.ProviderModel,
			BaseURL: cfg.ProviderBaseURL,
			Timeout: cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, "", "", err
		}
		return adapter, "openai", cfg.ProviderModel, nil
	default:
		return nil, "", "", fmt.Errorf("unsupported model mode %q", mode)
	}
}
