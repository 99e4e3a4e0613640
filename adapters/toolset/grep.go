package toolset

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/relaycore/turnkit/turn"
)

const defaultGrepMaxResults = 100

type grepArgs struct {
	Pattern         string `json:"pattern" jsonschema:"required,description=Regular expression to search for."`
	Path            string `json:"path,omitempty" jsonschema:"description=Directory or file to search\\, relative to the workspace root. Default: workspace root."`
	GlobFilter      string `json:"glob_filter,omitempty" jsonschema:"description=Only search files matching this glob\\, e.g. *.go."`
	CaseInsensitive bool   `json:"case_insensitive,omitempty"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of matching lines to return. Default: 100."`
}

// GrepTool searches file contents under the workspace root with a
// regular expression.
type GrepTool struct {
	Policy WorkspacePolicy
}

var _ turn.Tool = GrepTool{}

func (GrepTool) Definition() turn.ToolDefinition {
	return turn.ToolDefinition{
		Name:        "grep",
		Description: "Search file contents within the workspace root using a regular expression. Returns matching lines with file paths and line numbers.",
		InputSchema: schemaFor(&grepArgs{}),
	}
}

func (t GrepTool) Invoke(ctx context.Context, arguments map[string]any, tc turn.ToolContext) (turn.ToolResult, error) {
	pattern, err := stringArgument(arguments, "pattern")
	if err != nil {
		return errorResult(tc.CallID, "grep", err), nil
	}
	path, _ := arguments["path"].(string)
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	globFilter, _ := arguments["glob_filter"].(string)
	caseInsensitive, _ := arguments["case_insensitive"].(bool)
	maxResults := intArgument(arguments, "max_results", defaultGrepMaxResults)

	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return errorResult(tc.CallID, "grep", fmt.Errorf("grep: invalid pattern: %w", err)), nil
	}

	var matcher glob.Glob
	if globFilter != "" {
		matcher, err = glob.Compile(globFilter)
		if err != nil {
			return errorResult(tc.CallID, "grep", fmt.Errorf("grep: invalid glob_filter: %w", err)), nil
		}
	}

	root, err := t.Policy.ResolvePath(path)
	if err != nil {
		return errorResult(tc.CallID, "grep", err), nil
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if len(matches) >= maxResults {
			return fs.SkipAll
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if matcher != nil && !matcher.Match(d.Name()) {
			return nil
		}
		hits, err := grepFile(p, re, maxResults-len(matches))
		if err != nil {
			return nil
		}
		matches = append(matches, hits...)
		return nil
	})
	if walkErr != nil && ctx.Err() != nil {
		return turn.ToolResult{CallID: tc.CallID, Name: "grep", Status: turn.ToolStatusCancelled, Output: "(cancelled)"}, nil
	}
	if walkErr != nil {
		return errorResult(tc.CallID, "grep", fmt.Errorf("grep %q: %w", path, walkErr)), nil
	}

	if len(matches) == 0 {
		return turn.ToolResult{CallID: tc.CallID, Name: "grep", Status: turn.ToolStatusSuccess, Output: "no matches"}, nil
	}
	return turn.ToolResult{CallID: tc.CallID, Name: "grep", Status: turn.ToolStatusSuccess, Output: strings.Join(matches, "\n")}, nil
}

func grepFile(path string, re *regexp.Regexp, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hits []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() && len(hits) < limit {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			hits = append(hits, fmt.Sprintf("%s:%d:%s", path, lineNo, line))
		}
	}
	return hits, scanner.Err()
}

func intArgument(arguments map[string]any, key string, fallback int) int {
	value, ok := arguments[key]
	if !ok {
		return fallback
	}
	switch n := value.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	}
	return fallback
}
