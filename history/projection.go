// Package history projects an InternalSession's interleaved history into
// the coalesced, model-facing form sent on every model call, and
// compresses older tool output in that projection so that context does
// not balloon across a long-running session.
package history

import "github.com/relaycore/turnkit/turn"

// ProjectModelFacing coalesces an interleaved history into the message
// sequence a model sees: consecutive assistant-text and tool-call
// entries collapse into one assistant message carrying multiple content
// blocks, and consecutive tool-results collapse into one tool-result
// message. The projection is deterministic: the same interleaved history
// always yields the same message sequence.
func ProjectModelFacing(entries []turn.HistoryEntry) []turn.Message {
	var messages []turn.Message

	var assistant *turn.Message
	var toolResults *turn.Message

	flushAssistant := func() {
		if assistant != nil {
			messages = append(messages, *assistant)
			assistant = nil
		}
	}
	flushToolResults := func() {
		if toolResults != nil {
			messages = append(messages, *toolResults)
			toolResults = nil
		}
	}

	for _, entry := range entries {
		switch entry.Kind {
		case turn.HistoryEntryUserMessage, turn.HistoryEntryHandoff:
			flushAssistant()
			flushToolResults()
			messages = append(messages, turn.Message{
				Role:    turn.RoleUser,
				Content: []turn.ContentBlock{{Kind: turn.ContentBlockText, Text: entry.Text}},
			})

		case turn.HistoryEntryAssistantText:
			flushToolResults()
			if assistant == nil {
				assistant = &turn.Message{Role: turn.RoleAssistant}
			}
			if entry.Text != "" {
				assistant.Content = append(assistant.Content, turn.ContentBlock{
					Kind: turn.ContentBlockText,
					Text: entry.Text,
				})
			}

		case turn.HistoryEntryReasoning:
			flushToolResults()
			if assistant == nil {
				assistant = &turn.Message{Role: turn.RoleAssistant}
			}
			assistant.Content = append(assistant.Content, turn.ContentBlock{
				Kind: turn.ContentBlockReasoning,
				Text: entry.Text,
			})

		case turn.HistoryEntryToolCall:
			flushToolResults()
			if assistant == nil {
				assistant = &turn.Message{Role: turn.RoleAssistant}
			}
			assistant.Content = append(assistant.Content, turn.ContentBlock{
				Kind:       turn.ContentBlockToolCall,
				ToolCallID: entry.ToolCallID,
				ToolName:   entry.ToolName,
				ToolArgs:   entry.ToolArgs,
			})

		case turn.HistoryEntryToolResult:
			flushAssistant()
			if toolResults == nil {
				toolResults = &turn.Message{Role: turn.RoleToolResult}
			}
			toolResults.Content = append(toolResults.Content, turn.ContentBlock{
				Kind:         turn.ContentBlockToolResult,
				ToolCallID:   entry.ToolCallID,
				ToolName:     entry.ToolName,
				ToolStatus:   entry.ToolStatus,
				ToolOutput:   entry.ToolOutput,
				ToolMetadata: entry.ToolMetadata,
			})

		case turn.HistoryEntrySystemEvent:
			// System events are operational breadcrumbs, not model input.
			continue
		}
	}
	flushAssistant()
	flushToolResults()

	return Humanize(messages)
}
