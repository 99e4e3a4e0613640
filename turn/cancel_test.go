package turn_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaycore/turnkit/turn"
)

func TestCancelHandleTriggerIsIdempotentAndObservable(t *testing.T) {
	t.Parallel()

	handle := turn.NewCancelHandle()
	if handle.Triggered() {
		t.Fatalf("fresh handle should not be triggered")
	}

	handle.Trigger()
	handle.Trigger() // safe to call twice

	if !handle.Triggered() {
		t.Fatalf("expected handle to be triggered")
	}
	select {
	case <-handle.Done():
	default:
		t.Fatalf("expected Done channel to be closed")
	}
}

func TestCancelHandleWithCancelMergesParentAndHandle(t *testing.T) {
	t.Parallel()

	handle := turn.NewCancelHandle()
	merged, cancel := handle.WithCancel(context.Background())
	defer cancel()

	handle.Trigger()

	select {
	case <-merged.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected merged context to be done once the handle is triggered")
	}
}

func TestCancelHandleWithCancelHonorsParentCancellation(t *testing.T) {
	t.Parallel()

	parent, parentCancel := context.WithCancel(context.Background())
	handle := turn.NewCancelHandle()
	merged, cancel := handle.WithCancel(parent)
	defer cancel()

	parentCancel()

	select {
	case <-merged.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected merged context to be done once the parent is cancelled")
	}
}

func TestNilCancelHandleIsInert(t *testing.T) {
	t.Parallel()

	var handle *turn.CancelHandle
	handle.Trigger()
	if handle.Triggered() {
		t.Fatalf("a nil handle should never report triggered")
	}
	select {
	case <-handle.Done():
	default:
		t.Fatalf("a nil handle's Done channel should already be closed")
	}
}
