package mockmodel_test

import (
	"context"
	"strings"
	"testing"

	"github.com/relaycore/turnkit/adapters/mockmodel"
	"github.com/relaycore/turnkit/turn"
)

func TestGenerateIsDeterministicAndToolFree(t *testing.T) {
	t.Parallel()

	request := turn.ModelRequest{
		Messages: []turn.Message{
			{Role: turn.RoleUser, Content: []turn.ContentBlock{{Kind: turn.ContentBlockText, Text: "hello"}}},
		},
	}

	var chunks []turn.StreamChunk
	message, usage, err := mockmodel.Model{}.Generate(context.Background(), request, func(c turn.StreamChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(message.ToolCalls()) != 0 {
		t.Fatalf("expected no tool calls, got %d", len(message.ToolCalls()))
	}
	if !strings.Contains(message.TextContent(), `latest_user="hello"`) {
		t.Fatalf("unexpected text: %q", message.TextContent())
	}
	if len(chunks) != 1 || chunks[0].TextDelta != message.TextContent() {
		t.Fatalf("expected a single text delta chunk matching the final message, got %+v", chunks)
	}
	if usage.OutputTokens == 0 {
		t.Fatalf("expected non-zero usage")
	}
}
