package toolset

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/relaycore/turnkit/turn"
)

type findPathArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern\\, e.g. **/*.go."`
	Path    string `json:"path,omitempty" jsonschema:"description=Base directory\\, relative to the workspace root. Default: workspace root."`
}

// FindPathTool locates files under the workspace root by glob pattern,
// newest modification time first.
type FindPathTool struct {
	Policy WorkspacePolicy
}

var _ turn.Tool = FindPathTool{}

func (FindPathTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        "find_path",
		Description: "Find files under the workspace root matching a glob pattern. Returns paths sorted newest first.",
		InputSchema: schemaFor(&findPathArgs{}),
	}
}

func (t FindPathTool) Invoke(ctx context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	pattern, err := stringArgument(arguments, "pattern")
	if err != nil {
		return errorResult(tc.CallID, "find_path", err), nil
	}
	path, _ := arguments["path"].(string)
	if path == "" {
		path = "."
	}

	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return errorResult(tc.CallID, "find_path", fmt.Errorf("find_path: invalid pattern: %w", err)), nil
	}

	root, err := t.Policy.ResolvePath(path)
	if err != nil {
		return errorResult(tc.CallID, "find_path", err), nil
	}

	type hit struct {
		path    string
		modTime int64
	}
	var hits []hit
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if !matcher.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		hits = append(hits, hit{path: p, modTime: info.ModTime().UnixNano()})
		return nil
	})
	if walkErr != nil && ctx.Err() != nil {
		return turn.ToolResult{CallID: tc.CallID, Name: "find_path", Status: turn.ToolStatusCancelled, Output: "(cancelled)"}, nil
	}
	if walkErr != nil {
		return errorResult(tc.CallID, "find_path", fmt.Errorf("find_path %q: %w", path, walkErr)), nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].modTime > hits[j].modTime })

	if len(hits) == 0 {
		return turn.ToolResult{CallID: tc.CallID, Name: "find_path", Status: turn.ToolStatusSuccess, Output: "no matches"}, nil
	}
	paths := make([]string, len(hits))
	for i, h := range hits {
		paths[i] = h.path
	}
	out := paths[0]
	for _, p := range paths[1:] {
		out += "\n" + p
	}
	return turn.ToolResult{CallID: tc.CallID, Name: "find_path", Status: turn.ToolStatusSuccess, Output: out}, nil
}
