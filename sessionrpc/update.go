package sessionrpc

import (
	"encoding/json"
	"fmt"

	"github.com/relaycore/turnkit/turn"
)

// toolKind classifies a tool name for the external UI. The mapping is a
// fixed, enumerated table; tools outside it render as "other".
func toolKind(toolName string) string {
	switch toolName {
	case "read_file":
		return "read"
	case "edit_file":
		return "edit"
	case "terminal":
		return "execute"
	case "grep", "find_path":
		return "search"
	case "thinking":
		return "think"
	case "fetch", "web_search":
		return "fetch"
	default:
		return "other"
	}
}

// sessionUpdateParams is the params object of one session/update
// notification: sessionId plus a tagged-union update payload.
type sessionUpdateParams struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

func agentMessageChunk(text string) (json.RawMessage, error) {
	return marshalUpdate(struct {
		SessionUpdate string `json:"sessionUpdate"`
		Content       struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}{
		SessionUpdate: "agent_message_chunk",
		Content: struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "text", Text: text},
	})
}

func agentThoughtChunk(text string) (json.RawMessage, error) {
	return marshalUpdate(struct {
		SessionUpdate string `json:"sessionUpdate"`
		Content       struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}{
		SessionUpdate: "agent_thought_chunk",
		Content: struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "text", Text: text},
	})
}

func toolCallStarted(event turn.Event) (json.RawMessage, error) {
	return marshalUpdate(struct {
		SessionUpdate string `json:"sessionUpdate"`
		ToolCallID    string `json:"toolCallId"`
		Title         string `json:"title"`
		Kind          string `json:"kind"`
		Status        string `json:"status"`
	}{
		SessionUpdate: "tool_call",
		ToolCallID:    event.ToolCallID,
		Title:         event.ToolName,
		Kind:          toolKind(event.ToolName),
		Status:        "in_progress",
	})
}

func toolCallUpdated(event turn.Event) (json.RawMessage, error) {
	status := "completed"
	if event.ToolResult != nil && event.ToolResult.Status != turn.ToolStatusSuccess {
		status = "failed"
	}
	content := ""
	if event.ToolResult != nil {
		content = event.ToolResult.Output
	}
	return marshalUpdate(struct {
		SessionUpdate string `json:"sessionUpdate"`
		ToolCallID    string `json:"toolCallId"`
		Status        string `json:"status"`
		Content       string `json:"content,omitempty"`
	}{
		SessionUpdate: "tool_call_update",
		ToolCallID:    event.ToolCallID,
		Status:        status,
		Content:       content,
	})
}

// planFromTodoWrite derives a plan notification from a todo_write tool
// call's arguments, emitted additionally alongside its tool_call_update.
func planFromTodoWrite(arguments map[string]any) (json.RawMessage, error) {
	type planEntry struct {
		Content  string `json:"content"`
		Status   string `json:"status"`
		Priority string `json:"priority,omitempty"`
	}
	var entries []planEntry
	raw, _ := arguments["todos"].([]any)
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["content"].(string)
		status, _ := m["status"].(string)
		entries = append(entries, planEntry{Content: content, Status: status})
	}
	return marshalUpdate(struct {
		SessionUpdate string      `json:"sessionUpdate"`
		Entries       []planEntry `json:"entries"`
	}{SessionUpdate: "plan", Entries: entries})
}

func marshalUpdate(v any) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal session/update payload: %w", err)
	}
	return body, nil
}
