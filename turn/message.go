package turn

import "time"

// Role identifies the author of a message in the conversation transcript.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool-result"
)

// ContentBlockKind discriminates the variants of ContentBlock.
type ContentBlockKind string

const (
	ContentBlockText       ContentBlockKind = "text"
	ContentBlockReasoning  ContentBlockKind = "reasoning"
	ContentBlockToolCall   ContentBlockKind = "tool-call"
	ContentBlockToolResult ContentBlockKind = "tool-result"
)

// ContentBlock is one unit inside a Message's ordered content sequence.
//
// Only the fields relevant to Kind are populated; the rest stay zero.
type ContentBlock struct {
	Kind ContentBlockKind `json:"kind"`

	Text string `json:"text,omitempty"`

	ToolCallID   string         `json:"tool_call_id,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	ToolArgs     map[string]any `json:"tool_args,omitempty"`
	ToolStatus   ToolStatus     `json:"tool_status,omitempty"`
	ToolOutput   string         `json:"tool_output,omitempty"`
	ToolMetadata ToolMetadata   `json:"tool_metadata,omitempty"`
}

// Message is a turn-tagged content unit in a conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextContent returns the concatenation of all text blocks in the message.
func (m Message) TextContent() string {
	var out string
	for _, block := range m.Content {
		if block.Kind == ContentBlockText {
			out += block.Text
		}
	}
	return out
}

// ToolCalls returns every tool-call block in the message, in order.
func (m Message) ToolCalls() []ContentBlock {
	var out []ContentBlock
	for _, block := range m.Content {
		if block.Kind == ContentBlockToolCall {
			out = append(out, block)
		}
	}
	return out
}

// CloneMessage returns a deep copy of a message.
func CloneMessage(in Message) Message {
	out := in
	if len(in.Content) > 0 {
		out.Content = make([]ContentBlock, len(in.Content))
		for i := range in.Content {
			out.Content[i] = cloneContentBlock(in.Content[i])
		}
	}
	return out
}

// CloneMessages returns deep copies of a message slice.
func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i := range in {
		out[i] = CloneMessage(in[i])
	}
	return out
}

func cloneContentBlock(in ContentBlock) ContentBlock {
	out := in
	if in.ToolArgs != nil {
		out.ToolArgs = make(map[string]any, len(in.ToolArgs))
		for k, v := range in.ToolArgs {
			out.ToolArgs[k] = v
		}
	}
	return out
}

// HistoryEntryKind discriminates the variants of a HistoryEntry.
type HistoryEntryKind string

const (
	HistoryEntryUserMessage    HistoryEntryKind = "user-message"
	HistoryEntryAssistantText  HistoryEntryKind = "assistant-text"
	HistoryEntryReasoning      HistoryEntryKind = "reasoning"
	HistoryEntryToolCall       HistoryEntryKind = "tool-call"
	HistoryEntryToolResult     HistoryEntryKind = "tool-result"
	HistoryEntryHandoff        HistoryEntryKind = "handoff"
	HistoryEntrySystemEvent    HistoryEntryKind = "system-event"
)

// HistoryEntry is one event in the interleaved history timeline.
type HistoryEntry struct {
	Kind      HistoryEntryKind `json:"kind"`
	Timestamp time.Time        `json:"timestamp"`

	Text string `json:"text,omitempty"`

	ToolCallID   string         `json:"tool_call_id,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	ToolArgs     map[string]any `json:"tool_args,omitempty"`
	ToolStatus   ToolStatus     `json:"tool_status,omitempty"`
	ToolOutput   string         `json:"tool_output,omitempty"`
	ToolMetadata ToolMetadata   `json:"tool_metadata,omitempty"`

	HandoffFromAgent string `json:"handoff_from_agent,omitempty"`
	HandoffToAgent   string `json:"handoff_to_agent,omitempty"`
}

// CloneHistoryEntry returns a deep copy of a history entry.
func CloneHistoryEntry(in HistoryEntry) HistoryEntry {
	out := in
	if in.ToolArgs != nil {
		out.ToolArgs = make(map[string]any, len(in.ToolArgs))
		for k, v := range in.ToolArgs {
			out.ToolArgs[k] = v
		}
	}
	return out
}

// CloneHistory returns deep copies of a history-entry slice.
func CloneHistory(in []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(in))
	for i := range in {
		out[i] = CloneHistoryEntry(in[i])
	}
	return out
}
