// Package idgen generates the prefixable, sortable-by-arrival ids used
// for sessions, traces, and tool calls throughout turnkit.
package idgen

import "context"

// Generator produces a new id tagged with a short prefix (e.g. "trace",
// "sess", "call") so that ids remain recognizable in logs and queries.
type Generator interface {
	NewID(ctx context.Context, prefix string) (string, error)
}
