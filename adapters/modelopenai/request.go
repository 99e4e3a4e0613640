package modelopenai

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/relaycore/turnkit/turn"
)

func buildRequest(model string, request turn.ModelRequest) (openai.ChatCompletionRequest, error) {
	messages, err := toChatMessages(request.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	tools := make([]openai.Tool, len(request.Tools))
	for i, def := range request.Tools {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		}
	}

	return openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}, nil
}

func toChatMessages(messages []turn.Message) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	for i := range messages {
		switch messages[i].Role {
		case turn.RoleSystem, turn.RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    providerRole(messages[i].Role),
				Content: messages[i].TextContent(),
			})

		case turn.RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: messages[i].TextContent(),
			}
			for _, block := range messages[i].ToolCalls() {
				arguments := "{}"
				if len(block.ToolArgs) > 0 {
					encoded, err := json.Marshal(block.ToolArgs)
					if err != nil {
						return nil, fmt.Errorf("encode tool call arguments for %q: %w", block.ToolName, err)
					}
					arguments = string(encoded)
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   block.ToolCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.ToolName,
						Arguments: arguments,
					},
				})
			}
			out = append(out, msg)

		case turn.RoleToolResult:
			for _, block := range messages[i].Content {
				if block.Kind != turn.ContentBlockToolResult {
					continue
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.ToolOutput,
					ToolCallID: block.ToolCallID,
				})
			}

		default:
			return nil, fmt.Errorf("unsupported message role %q", messages[i].Role)
		}
	}
	return out, nil
}

func providerRole(role turn.Role) string {
	switch role {
	case turn.RoleSystem:
		return openai.ChatMessageRoleSystem
	case turn.RoleUser:
		return openai.ChatMessageRoleUser
	default:
		return openai.ChatMessageRoleUser
	}
}
