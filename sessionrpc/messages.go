package sessionrpc

// PromptBlock is one unit of the external, typed prompt content the
// caller sends with session/prompt. Only "text" is guaranteed support;
// other types pass through to the model opaquely where it understands
// them, or are rejected with invalidParams otherwise.
type PromptBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URI  string `json:"uri,omitempty"`
	Data string `json:"data,omitempty"`
}

type initializeResult struct {
	ProtocolVersion   string            `json:"protocolVersion"`
	AgentCapabilities agentCapabilities `json:"agentCapabilities"`
	AgentInfo         agentInfo         `json:"agentInfo"`
}

type agentCapabilities struct {
	LoadSession bool `json:"loadSession"`
}

type agentInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpServer struct {
	Name    string   `json:"name"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

type sessionNewParams struct {
	Cwd        string      `json:"cwd"`
	MCPServers []mcpServer `json:"mcpServers"`
}

type sessionNewResult struct {
	SessionID string `json:"sessionId"`
}

type sessionPromptParams struct {
	SessionID string        `json:"sessionId"`
	Prompt    []PromptBlock `json:"prompt"`
}

type sessionPromptResult struct {
	StopReason string `json:"stopReason"`
}

type sessionCancelParams struct {
	SessionID string `json:"sessionId"`
}

type sessionSetModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// stopReason values, per the external contract's fixed set.
const (
	stopReasonEndTurn          = "end_turn"
	stopReasonCancelled        = "cancelled"
	stopReasonRefusal          = "refusal"
	stopReasonMaxTokens        = "max_tokens"
	stopReasonMaxTurnRequests  = "max_turn_requests"
)

// promptText concatenates the text blocks of a prompt, the only content
// kind the core is required to understand.
func promptText(blocks []PromptBlock) (string, error) {
	var text string
	for _, block := range blocks {
		switch block.Type {
		case "text":
			text += block.Text
		case "resource", "image":
			// Passed through opaquely; the core has no model-agnostic way
			// to inline them here, so they contribute nothing to the text
			// sent to agents that don't support them.
		default:
			return "", invalidParams("unsupported prompt content type: " + block.Type)
		}
	}
	return text, nil
}
