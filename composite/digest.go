package composite

import (
	"fmt"
	"strings"

	"github.com/relaycore/turnkit/turn"
)

// roleFlipMessage renders one agent's turn output as the user-role
// message its partner will see next: the agent's text followed by a
// short digest of the tool calls it made. This is the "role flip" — the
// partner perceives this agent as the user.
func roleFlipMessage(result turn.TurnResult) string {
	var b strings.Builder
	if result.Text != "" {
		b.WriteString(result.Text)
	}
	if len(result.ExecutedToolCalls) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Tool calls made:\n")
		for _, call := range result.ExecutedToolCalls {
			fmt.Fprintf(&b, "- %s(%s) -> %s: %s\n", call.Name, call.ID, call.Status, truncateDigest(call.Output))
		}
	}
	return b.String()
}

const digestLineLimit = 200

func truncateDigest(output string) string {
	if len(output) <= digestLineLimit {
		return output
	}
	return output[:digestLineLimit] + "…"
}
