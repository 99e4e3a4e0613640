package composite_test

import (
	"testing"
	"time"

	"github.com/relaycore/turnkit/composite"
	"github.com/relaycore/turnkit/turn"
)

func TestNewSessionCreatesCoagentOnlyUnderCoagentPolicy(t *testing.T) {
	t.Parallel()

	now := time.Now()
	primaryAgent := turn.AgentIdentity{Name: "primary", Role: "primary"}
	coagentAgent := turn.AgentIdentity{Name: "coagent", Role: "coagent"}

	loop := composite.NewSession("s1", composite.Policy{Kind: composite.PolicyLoop}, primaryAgent, coagentAgent, now)
	if loop.Coagent != nil {
		t.Fatalf("expected no coagent session under PolicyLoop")
	}
	if loop.Primary == nil || loop.Primary.Agent != primaryAgent {
		t.Fatalf("expected a primary session with the given identity, got %+v", loop.Primary)
	}

	coagentRun := composite.NewSession("s2", composite.Policy{Kind: composite.PolicyCoagent}, primaryAgent, coagentAgent, now)
	if coagentRun.Coagent == nil || coagentRun.Coagent.Agent != coagentAgent {
		t.Fatalf("expected a coagent session under PolicyCoagent, got %+v", coagentRun.Coagent)
	}
	if coagentRun.Todos == nil {
		t.Fatalf("expected a shared todo list")
	}
}
