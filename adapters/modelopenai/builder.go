package modelopenai

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/relaycore/turnkit/turn"
)

type pendingToolCall struct {
	id, name string
	args     strings.Builder
}

// assistantBuilder accumulates streamed text, reasoning, and tool-call
// argument fragments into one assistant turn.Message. Tool calls are
// keyed by their stream index since providers may interleave argument
// fragments for several calls across chunks.
type assistantBuilder struct {
	text      string
	reasoning string

	order    []int
	byIndex  map[int]*pendingToolCall
}

func (a *assistantBuilder) appendText(delta string) {
	a.text += delta
}

func (a *assistantBuilder) appendReasoning(delta string) {
	a.reasoning += delta
}

// appendToolCallDelta folds one streamed tool-call fragment into the
// builder's accumulated state and returns the identifying fields the
// caller forwards in a turn.StreamChunk.
func (a *assistantBuilder) appendToolCallDelta(delta openai.ToolCall) (id, name, argsDelta string) {
	if a.byIndex == nil {
		a.byIndex = make(map[int]*pendingToolCall)
	}
	index := 0
	if delta.Index != nil {
		index = *delta.Index
	}

	call, ok := a.byIndex[index]
	if !ok {
		call = &pendingToolCall{}
		a.byIndex[index] = call
		a.order = append(a.order, index)
	}
	if delta.ID != "" {
		call.id = delta.ID
	}
	if delta.Function.Name != "" {
		call.name = delta.Function.Name
	}
	if delta.Function.Arguments != "" {
		call.args.WriteString(delta.Function.Arguments)
	}

	return call.id, call.name, delta.Function.Arguments
}

func (a *assistantBuilder) build() turn.Message {
	msg := turn.Message{Role: turn.RoleAssistant}
	if a.reasoning != "" {
		msg.Content = append(msg.Content, turn.ContentBlock{Kind: turn.ContentBlockReasoning, Text: a.reasoning})
	}
	if a.text != "" {
		msg.Content = append(msg.Content, turn.ContentBlock{Kind: turn.ContentBlockText, Text: a.text})
	}

	sort.Ints(a.order)
	for _, index := range a.order {
		call := a.byIndex[index]
		msg.Content = append(msg.Content, turn.ContentBlock{
			Kind:       turn.ContentBlockToolCall,
			ToolCallID: call.id,
			ToolName:   call.name,
			ToolArgs:   decodeArguments(call.args.String()),
		})
	}
	return msg
}

func decodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	_ = json.Unmarshal([]byte(raw), &args)
	return args
}
