package reactengine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/relaycore/turnkit/turn"
)

// doomLoopGuard maintains a fingerprint of the last N tool-call sequences
// issued within one turn. If the last N+1 fingerprints are identical, the
// turn is pathologically repeating itself and should stop.
type doomLoopGuard struct {
	window       int
	fingerprints []string
}

func newDoomLoopGuard(window int) *doomLoopGuard {
	if window <= 0 {
		window = turn.DefaultDoomLoopWindow
	}
	return &doomLoopGuard{window: window}
}

// Observe records the fingerprint of one iteration's tool calls and
// reports whether the guard has now seen window+1 identical fingerprints
// in a row.
func (g *doomLoopGuard) Observe(calls []turn.ToolCall) bool {
	fp := fingerprintToolCalls(calls)
	g.fingerprints = append(g.fingerprints, fp)

	needed := g.window + 1
	if len(g.fingerprints) < needed {
		return false
	}
	tail := g.fingerprints[len(g.fingerprints)-needed:]
	for i := 1; i < len(tail); i++ {
		if tail[i] != tail[0] {
			return false
		}
	}
	return true
}

func fingerprintToolCalls(calls []turn.ToolCall) string {
	type normalized struct {
		Name string `json:"name"`
		Args any    `json:"args"`
	}
	out := make([]normalized, len(calls))
	for i, call := range calls {
		out[i] = normalized{Name: call.Name, Args: normalizeArguments(call.Arguments)}
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// normalizeArguments sorts map keys so that fingerprinting is insensitive
// to map iteration order, matching JSON objects that are semantically
// equal but decoded in different field order.
func normalizeArguments(args map[string]any) any {
	if args == nil {
		return nil
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Key = k
		ordered[i].Value = args[k]
	}
	return ordered
}
