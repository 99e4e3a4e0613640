package idgen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// UUIDGenerator produces prefix-tagged random v4 UUIDs. This is the
// generator wired in production; ids are globally unique without
// coordination, which matters once traces and sessions can be created
// from multiple concurrent goroutines.
type UUIDGenerator struct{}

// NewUUIDGenerator returns a UUIDGenerator. It carries no state.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) NewID(_ context.Context, prefix string) (string, error) {
	if prefix == "" {
		return uuid.NewString(), nil
	}
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()), nil
}
