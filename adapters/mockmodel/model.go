// Package mockmodel provides a deterministic turn.Model used when a
// turnkitd instance is configured with model_mode=mock: no network
// calls, useful for exercising the rest of the stack in development
// and in tests.
package mockmodel

import (
	"context"
	"fmt"

	"github.com/relaycore/turnkit/turn"
)

// Model answers every prompt with a single deterministic text response
// describing the request it received. It never emits tool calls, so a
// turn against it always ends in turn.TurnOutcomeTextOnly on the first
// iteration.
type Model struct{}

var _ turn.Model = Model{}

func (Model) Generate(ctx context.Context, request turn.ModelRequest, onChunk func(turn.StreamChunk) error) (turn.Message, turn.Usage, error) {
	text := fmt.Sprintf(
		"mock_response messages=%d tools=%d latest_user=%q",
		len(request.Messages),
		len(request.Tools),
		latestUserMessage(request.Messages),
	)

	if err := onChunk(turn.StreamChunk{Kind: turn.StreamChunkTextDelta, TextDelta: text}); err != nil {
		return turn.Message{}, turn.Usage{}, err
	}

	message := turn.Message{
		Role:    turn.RoleAssistant,
		Content: []turn.ContentBlock{{Kind: turn.ContentBlockText, Text: text}},
	}
	usage := turn.Usage{InputTokens: len(request.Messages), OutputTokens: 1}
	return message, usage, nil
}

func latestUserMessage(messages []turn.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == turn.RoleUser {
			return messages[i].TextContent()
		}
	}
	return ""
}
