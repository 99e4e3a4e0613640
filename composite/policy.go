package composite

import "github.com/relaycore/turnkit/turn"

// PolicyKind discriminates the control-flow policy a composite run
// follows.
type PolicyKind string

const (
	PolicyPassthrough PolicyKind = "passthrough"
	PolicyLoop        PolicyKind = "loop"
	PolicyStatic      PolicyKind = "static"
	PolicyGenerated   PolicyKind = "generated"
	PolicyCoagent     PolicyKind = "coagent"
)

// Policy is a tagged variant: only the fields relevant to Kind are read.
type Policy struct {
	Kind PolicyKind

	// StaticMessage is injected as a user-role message after every
	// primary turn under PolicyStatic.
	StaticMessage string

	// GeneratedPrompt seeds a one-time model call under PolicyGenerated
	// whose output is then injected exactly like StaticMessage for the
	// remainder of the run.
	GeneratedPrompt string

	// CoagentTools is the tool catalog offered to the co-agent under
	// PolicyCoagent. If CoagentCanTerminate is false, task_complete is
	// removed from this catalog before the co-agent ever sees it.
	CoagentTools        []turn.ToolDefinition
	CoagentCanTerminate bool
}

// MaxCompositeTurns is MAX_COMPOSITE_TURNS, the ceiling on total turns
// exchanged between primary and co-agent in one coagent-policy run.
const MaxCompositeTurns = 10
