package composite

import "errors"

var (
	// ErrMissingPrimaryEngine is returned when an Orchestrator is built without a primary turn engine.
	ErrMissingPrimaryEngine = errors.New("missing primary engine")
	// ErrMissingCoagentEngine is returned when a PolicyCoagent session is run without a co-agent engine configured.
	ErrMissingCoagentEngine = errors.New("missing coagent engine")
	// ErrMissingModel is returned when PolicyGenerated is run without a model configured to synthesize the injected message.
	ErrMissingModel = errors.New("missing model for generated policy")
	// ErrSessionNil is returned when Run is called with a nil composite session.
	ErrSessionNil = errors.New("composite session is nil")
	// ErrCompositeTurnLimit is returned when a coagent-policy run exceeds MaxCompositeTurns.
	ErrCompositeTurnLimit = errors.New("composite turn limit exceeded")
	// ErrCoagentMissing is returned when PolicyCoagent is configured on a session with no co-agent InternalSession.
	ErrCoagentMissing = errors.New("policy requires a coagent session")
)
