// Package toolset provides the illustrative tool catalog a turnkitd
// agent is configured with: filesystem access, a bounded terminal, and
// the two control tools every autonomous policy depends on
// (task_complete, todo_write).
package toolset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTerminalTimeout = 30 * time.Second
	DefaultMaxReadBytes    = 1 << 20
)

var (
	ErrPathRequired         = errors.New("tool path is required")
	ErrPathOutsideWorkspace = errors.New("tool path escapes workspace root")
	ErrArgumentInvalid      = errors.New("tool arguments are invalid")
)

// WorkspacePolicy bounds every filesystem and terminal tool to one
// resolved root directory.
type WorkspacePolicy struct {
	root            string
	terminalTimeout time.Duration
	maxReadBytes    int64
}

// NewWorkspacePolicy resolves root (following symlinks) and returns a
// policy scoped to it.
func NewWorkspacePolicy(root string, terminalTimeout time.Duration) (WorkspacePolicy, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return WorkspacePolicy{}, fmt.Errorf("new workspace policy: root is required")
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return WorkspacePolicy{}, fmt.Errorf("new workspace policy: resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return WorkspacePolicy{}, fmt.Errorf("new workspace policy: resolve root symlinks: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return WorkspacePolicy{}, fmt.Errorf("new workspace policy: stat root: %w", err)
	}
	if !info.IsDir() {
		return WorkspacePolicy{}, fmt.Errorf("new workspace policy: root is not a directory: %q", resolved)
	}

	if terminalTimeout <= 0 {
		terminalTimeout = DefaultTerminalTimeout
	}

	return WorkspacePolicy{root: resolved, terminalTimeout: terminalTimeout, maxReadBytes: DefaultMaxReadBytes}, nil
}

func (p WorkspacePolicy) Root() string                    { return p.root }
func (p WorkspacePolicy) TerminalTimeout() time.Duration   { return p.terminalTimeout }

// ResolvePath maps a caller-supplied path (absolute or workspace
// relative) to an absolute path guaranteed to sit under the workspace
// root, or fails.
func (p WorkspacePolicy) ResolvePath(raw string) (string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", ErrPathRequired
	}

	var candidate string
	if filepath.IsAbs(path) {
		candidate = filepath.Clean(path)
	} else {
		candidate = filepath.Join(p.root, filepath.Clean(path))
	}

	candidateAbs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	if !hasPathPrefix(p.root, candidateAbs) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideWorkspace, path)
	}
	return candidateAbs, nil
}

func hasPathPrefix(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "")
}

func stringArgument(arguments map[string]any, key string) (string, error) {
	if arguments == nil {
		return "", fmt.Errorf("%w: missing argument %q", ErrArgumentInvalid, key)
	}
	value, ok := arguments[key]
	if !ok {
		return "", fmt.Errorf("%w: missing argument %q", ErrArgumentInvalid, key)
	}
	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", fmt.Errorf("%w: argument %q must be a non-empty string", ErrArgumentInvalid, key)
	}
	return str, nil
}
