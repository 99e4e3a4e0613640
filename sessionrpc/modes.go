package sessionrpc

import "github.com/relaycore/turnkit/composite"

// policyForMode resolves an external modeId to a control-flow policy.
// The static message, generated prompt, and co-agent tool catalog are
// fixed at server construction; setMode only switches which arm of the
// policy is active, matching the "only succeeds between prompts"
// contract.
func policyForMode(modeID string, deps Deps) (composite.Policy, error) {
	policy := deps.Policy
	switch modeID {
	case "passthrough":
		policy.Kind = composite.PolicyPassthrough
	case "loop":
		policy.Kind = composite.PolicyLoop
	case "static":
		policy.Kind = composite.PolicyStatic
	case "generated":
		policy.Kind = composite.PolicyGenerated
	case "coagent":
		policy.Kind = composite.PolicyCoagent
	default:
		return composite.Policy{}, invalidParams("unknown modeId: " + modeID)
	}
	return policy, nil
}
