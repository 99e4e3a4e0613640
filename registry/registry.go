// Package registry exposes the set of callable tools to agents, enforces
// per-agent permissions, and mediates invocation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/relaycore/turnkit/turn"
)

var (
	// ErrToolUnregistered is returned when a call names a tool the registry doesn't know.
	ErrToolUnregistered = errors.New("tool is not registered")
	// ErrToolDenied is returned when the invoking agent's permissions deny the tool.
	ErrToolDenied = errors.New("tool denied by agent permissions")
	// ErrCommandDenied is returned when a command-executing tool's argument fails pattern permission checks.
	ErrCommandDenied = errors.New("command denied by agent permissions")
)

// CommandExtractor pulls the command string that command patterns are
// matched against out of a tool call's arguments (the terminal tool's
// extractor returns the whole trimmed command), for tools whose permission
// model is pattern-based rather than all-or-nothing. Tools that don't
// execute commands need no entry here.
type CommandExtractor func(arguments map[string]any) (command string, ok bool)

// Registry stores tools in deterministic registration order and
// resolves calls against per-agent permissions before invoking them.
type Registry struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, turn.Tool]

	commandExtractors map[string]CommandExtractor
	permissions       map[string]AgentPermissions
	compiled          map[string][]compiledPattern
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		tools:             orderedmap.New[string, turn.Tool](),
		commandExtractors: make(map[string]CommandExtractor),
		permissions:       make(map[string]AgentPermissions),
		compiled:          make(map[string][]compiledPattern),
	}
}

// RegisterTool adds a tool to the catalog, in call order. Registering a
// name a second time replaces the earlier definition in place, keeping
// its original position.
func (r *Registry) RegisterTool(tool turn.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools.Set(tool.Definition().Name, tool)
}

// RegisterCommandExtractor associates a command-string extractor with a
// tool name, enabling command-prefix permission checks for it.
func (r *Registry) RegisterCommandExtractor(toolName string, extractor CommandExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandExtractors[toolName] = extractor
}

// SetPermissions declares (or replaces) one agent's tool and
// command-pattern permissions.
func (r *Registry) SetPermissions(agentName string, perm AgentPermissions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions[agentName] = perm
	r.compiled[agentName] = compilePatterns(perm.CommandPatterns)
}

var _ turn.ToolExecutor = (*Registry)(nil)

// Catalog returns the tool definitions callable by agentName, in
// registration order, filtered by that agent's permissions.
func (r *Registry) Catalog(agentName string) []turn.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perm := r.permissions[agentName]
	out := make([]turn.ToolDefinition, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		if !perm.toolAllowed(pair.Key) {
			continue
		}
		out = append(out, pair.Value.Definition())
	}
	return out
}

// Execute resolves and invokes call.Name on behalf of agentName, having
// checked both the tool-level and (if applicable) command-pattern
// permissions first.
func (r *Registry) Execute(ctx context.Context, call turn.ToolCall, tc turn.ToolContext) (turn.ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools.Get(call.Name)
	perm := r.permissions[tc.AgentName]
	extractor := r.commandExtractors[call.Name]
	patterns := r.compiled[tc.AgentName]
	r.mu.RUnlock()

	if !ok {
		return turn.ToolResult{}, fmt.Errorf("%w: %q", ErrToolUnregistered, call.Name)
	}
	if !perm.toolAllowed(call.Name) {
		return turn.ToolResult{}, fmt.Errorf("%w: agent=%q tool=%q", ErrToolDenied, tc.AgentName, call.Name)
	}
	if extractor != nil {
		if command, ok := extractor(call.Arguments); ok {
			if resolved := evaluateCommand(command, patterns); !resolved.resolves() {
				return turn.ToolResult{}, fmt.Errorf("%w: agent=%q command=%q", ErrCommandDenied, tc.AgentName, command)
			}
		}
	}

	return tool.Invoke(ctx, call.Arguments, tc)
}
