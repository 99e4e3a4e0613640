package turn

import "context"

// ModelRequest is the model input contract for the turn engine.
type ModelRequest struct {
	Messages []Message
	Tools    []ToolDefinition
}

// StreamChunkKind discriminates the variants of StreamChunk.
type StreamChunkKind string

const (
	StreamChunkTextDelta      StreamChunkKind = "text_delta"
	StreamChunkReasoningDelta StreamChunkKind = "reasoning_delta"
	StreamChunkToolCallDelta  StreamChunkKind = "tool_call_delta"
)

// StreamChunk is one piece of a streaming model response. Tool-call
// arguments may arrive in fragments across several chunks sharing the
// same ToolCallID; the caller is responsible for buffering them until
// the full JSON value is known (the turn engine does this in
// buildAssistantMessage).
type StreamChunk struct {
	Kind StreamChunkKind

	TextDelta      string
	ReasoningDelta string

	ToolCallID        string
	ToolCallName      string
	ToolCallArgsDelta string // raw JSON fragment, concatenated across chunks
}

// Model produces assistant messages that may include tool calls, called
// in streaming mode: onChunk is invoked for every piece of the response
// as it arrives, and the final assembled Message plus aggregate Usage is
// returned once the response completes.
type Model interface {
	Generate(ctx context.Context, request ModelRequest, onChunk func(StreamChunk) error) (Message, Usage, error)
}
