package registry

import "github.com/gobwas/glob"

// Permission is the resolved disposition for a tool or command pattern.
// Ask currently resolves identically to Allow: interactive prompting is
// not implemented here.
type Permission string

const (
	PermissionAllow Permission = "allow"
	PermissionDeny  Permission = "deny"
	PermissionAsk   Permission = "ask"
)

// resolves reports the runtime disposition of a Permission: Ask behaves
// like Allow because interactive prompting is out of scope.
func (p Permission) resolves() bool {
	return p == PermissionAllow || p == PermissionAsk
}

// CommandPattern pairs a glob pattern matched against the command string
// a tool's CommandExtractor returns with the permission it grants.
type CommandPattern struct {
	Pattern    string
	Permission Permission
}

// AgentPermissions is one agent's declared tool allow/deny map, plus the
// pattern-matched command permissions used by tools that execute
// commands (e.g. a terminal tool).
type AgentPermissions struct {
	Tools           map[string]Permission
	CommandPatterns []CommandPattern
}

// toolAllowed reports whether toolName is callable at all by this agent.
// A tool absent from Tools is denied by default: the catalog is
// allowlist-shaped, matching the fixed, enumerated tool set the core
// depends on.
func (p AgentPermissions) toolAllowed(toolName string) bool {
	status, ok := p.Tools[toolName]
	if !ok {
		return false
	}
	return status.resolves()
}

// compiledPattern pairs a CommandPattern with its compiled matcher.
type compiledPattern struct {
	glob       glob.Glob
	exact      string
	permission Permission
}

func compilePatterns(patterns []CommandPattern) []compiledPattern {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		compiled := compiledPattern{exact: p.Pattern, permission: p.Permission}
		if g, err := glob.Compile(p.Pattern); err == nil {
			compiled.glob = g
		}
		out = append(out, compiled)
	}
	return out
}

// evaluateCommand resolves a normalized command string against a set of
// compiled patterns using the precedence order: exact deny > exact
// allow > glob deny > glob allow > default deny.
func evaluateCommand(command string, patterns []compiledPattern) Permission {
	var globDeny, globAllow *Permission

	for _, p := range patterns {
		if p.exact == command {
			if p.permission == PermissionDeny {
				return PermissionDeny
			}
		}
	}
	for _, p := range patterns {
		if p.exact == command && p.permission.resolves() {
			return p.permission
		}
	}
	for _, p := range patterns {
		if p.glob == nil || p.exact == command {
			continue
		}
		if !p.glob.Match(command) {
			continue
		}
		if p.permission == PermissionDeny && globDeny == nil {
			perm := p.permission
			globDeny = &perm
		}
		if p.permission.resolves() && globAllow == nil {
			perm := p.permission
			globAllow = &perm
		}
	}
	if globDeny != nil {
		return PermissionDeny
	}
	if globAllow != nil {
		return *globAllow
	}
	return PermissionDeny
}
