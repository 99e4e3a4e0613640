package idgen

import (
	"context"
	"fmt"
	"sync/atomic"
)

// CounterGenerator produces deterministic, monotonically increasing ids.
// It exists for tests that assert on exact id values; production wiring
// uses UUIDGenerator.
type CounterGenerator struct {
	counter atomic.Uint64
}

// NewCounterGenerator returns a generator starting at 1.
func NewCounterGenerator() *CounterGenerator {
	return &CounterGenerator{}
}

func (g *CounterGenerator) NewID(_ context.Context, prefix string) (string, error) {
	next := g.counter.Add(1)
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s_%06d", prefix, next), nil
}
