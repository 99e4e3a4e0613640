package registry

import "testing"

func TestEvaluateCommandPrecedence(t *testing.T) {
	t.Parallel()

	patterns := compilePatterns([]CommandPattern{
		{Pattern: "git push*", Permission: PermissionDeny},
		{Pattern: "git *", Permission: PermissionAllow},
		{Pattern: "*", Permission: PermissionDeny},
	})

	cases := []struct {
		command string
		want    Permission
	}{
		{"git push origin main", PermissionDeny},
		{"git status", PermissionDeny},
		{"rm -rf /", PermissionDeny},
	}
	for _, c := range cases {
		if got := evaluateCommand(c.command, patterns); got != c.want {
			t.Fatalf("evaluateCommand(%q) = %q, want %q", c.command, got, c.want)
		}
	}
}

func TestEvaluateCommandExactDenyBeatsGlobAllow(t *testing.T) {
	t.Parallel()

	patterns := compilePatterns([]CommandPattern{
		{Pattern: "npm *", Permission: PermissionAllow},
		{Pattern: "npm publish", Permission: PermissionDeny},
	})

	if got := evaluateCommand("npm publish", patterns); got != PermissionDeny {
		t.Fatalf("exact deny should beat glob allow, got %q", got)
	}
	if got := evaluateCommand("npm install", patterns); got != PermissionAllow {
		t.Fatalf("expected glob allow for an untouched command, got %q", got)
	}
}

func TestEvaluateCommandDefaultsToDeny(t *testing.T) {
	t.Parallel()

	if got := evaluateCommand("anything", nil); got != PermissionDeny {
		t.Fatalf("expected default deny with no patterns, got %q", got)
	}
}

func TestAgentPermissionsToolAllowed(t *testing.T) {
	t.Parallel()

	perm := AgentPermissions{Tools: map[string]Permission{
		"read_file": PermissionAllow,
		"terminal":  PermissionDeny,
	}}

	if !perm.toolAllowed("read_file") {
		t.Fatalf("expected read_file to be allowed")
	}
	if perm.toolAllowed("terminal") {
		t.Fatalf("expected terminal to be denied")
	}
	if perm.toolAllowed("edit_file") {
		t.Fatalf("expected an unlisted tool to be denied by default")
	}
}
