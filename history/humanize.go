package history

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/relaycore/turnkit/turn"
)

// TruncateThresholdBytes is the output size above which a successful,
// non-recent tool result gets compressed.
const TruncateThresholdBytes = 4 * 1024

// RecentResultWindow is the number of most recent tool results kept at
// full fidelity regardless of size.
const RecentResultWindow = 2

const (
	headLines = 3
	tailLines = 2
)

// Humanize compresses older tool-call output in a model-facing message
// sequence: results under the size threshold, failed results, and the
// most recent RecentResultWindow results are left untouched; everything
// else is truncated to a head/tail excerpt. Humanize never mutates the
// interleaved history itself, only the projected copy it is given.
func Humanize(messages []turn.Message) []turn.Message {
	total := 0
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Kind == turn.ContentBlockToolResult {
				total++
			}
		}
	}

	seen := 0
	out := make([]turn.Message, len(messages))
	for i, msg := range messages {
		if !containsToolResult(msg) {
			out[i] = msg
			continue
		}
		clone := turn.CloneMessage(msg)
		for j, block := range clone.Content {
			if block.Kind != turn.ContentBlockToolResult {
				continue
			}
			seen++
			fromEnd := total - seen
			recent := fromEnd < RecentResultWindow
			failed := block.ToolStatus == turn.ToolStatusError
			if !recent && !failed {
				clone.Content[j].ToolOutput = truncateOutput(block.ToolOutput)
			}
		}
		out[i] = clone
	}
	return out
}

func containsToolResult(msg turn.Message) bool {
	for _, block := range msg.Content {
		if block.Kind == turn.ContentBlockToolResult {
			return true
		}
	}
	return false
}

func truncateOutput(output string) string {
	if len(output) <= TruncateThresholdBytes {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= headLines+tailLines {
		return output
	}
	head := lines[:headLines]
	tail := lines[len(lines)-tailLines:]
	elided := len(lines) - headLines - tailLines
	logTruncation(output, elided)
	return strings.Join(head, "\n") + fmt.Sprintf("\n… (%d lines) …\n", elided) + strings.Join(tail, "\n")
}

var truncationEncoding = mustEncoding("cl100k_base")

func mustEncoding(name string) *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil
	}
	return enc
}

// logTruncation emits the byte length and an approximate token count of
// the whole original output, plus the number of elided lines. The
// estimate never influences the truncation decision itself, which is
// purely byte-threshold based.
func logTruncation(original string, elidedLines int) {
	if truncationEncoding == nil {
		return
	}
	tokens := len(truncationEncoding.Encode(original, nil, nil))
	slog.Debug("humanized tool result", "elided_lines", elidedLines, "bytes", len(original), "approx_tokens", tokens)
}
