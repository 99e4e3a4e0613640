package turn

import "context"

// CancelHandle is a cooperative cancellation handle shared between the
// session protocol server and the turn engine it triggers. Unlike a plain
// context.Context, it can be held by a caller before the turn starts and
// triggered later by an unrelated goroutine (the handler for
// session/cancel), independently of the per-call context passed to model
// and tool invocations.
type CancelHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCancelHandle creates a handle that is not yet triggered.
func NewCancelHandle() *CancelHandle {
	ctx, cancel := context.WithCancel(context.Background())
	return &CancelHandle{ctx: ctx, cancel: cancel}
}

// Trigger signals cancellation. Safe to call more than once or from any
// goroutine.
func (h *CancelHandle) Trigger() {
	if h == nil {
		return
	}
	h.cancel()
}

// Triggered reports whether Trigger has been called.
func (h *CancelHandle) Triggered() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel closed when Trigger is called, suitable for
// select statements at suspension points.
func (h *CancelHandle) Done() <-chan struct{} {
	if h == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.ctx.Done()
}

// WithCancel merges the handle's cancellation into ctx, returning a
// derived context that is done when either ctx or the handle is done.
func (h *CancelHandle) WithCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	if h == nil {
		return context.WithCancel(ctx)
	}
	merged, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-h.ctx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}
