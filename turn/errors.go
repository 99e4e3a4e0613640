package turn

import "errors"

var (
	// ErrMissingModel is returned when New is called without a model dependency.
	ErrMissingModel = errors.New("missing model")
	// ErrMissingToolExecutor is returned when New is called without a tool executor dependency.
	ErrMissingToolExecutor = errors.New("missing tool executor")
	// ErrContextNil is returned when a nil context.Context is passed at a public boundary.
	ErrContextNil = errors.New("context is nil")
	// ErrSessionNil is returned when a nil InternalSession is passed at a public boundary.
	ErrSessionNil = errors.New("session is nil")
	// ErrIterationLimitExceeded is returned when a turn exhausts MAX_ITERATIONS without terminating.
	ErrIterationLimitExceeded = errors.New("turn exceeded iteration limit")
	// ErrDoomLoopDetected is returned when the same tool-call fingerprint sequence repeats.
	ErrDoomLoopDetected = errors.New("doom loop detected")
	// ErrEventPublish wraps a failure to publish an event to the sink.
	ErrEventPublish = errors.New("event publish failed")
	// ErrToolCallInvalid is returned when the model produces a malformed tool-call shape.
	ErrToolCallInvalid = errors.New("tool call is invalid")
	// ErrProviderUnrecoverable is returned for provider errors that are not retryable.
	ErrProviderUnrecoverable = errors.New("provider error is not retryable")
)
