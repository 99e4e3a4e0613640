package sessionrpc

import "errors"

var (
	// ErrUnknownSession is returned when a request names a session id the server has no record of.
	ErrUnknownSession = errors.New("unknown session id")
	// ErrEmptyPrompt is returned when session/prompt carries no usable content.
	ErrEmptyPrompt = errors.New("prompt has no usable content")
	// ErrSessionBusy is returned when session/setMode is attempted while a prompt is in flight.
	ErrSessionBusy = errors.New("session is processing a prompt")
)

// mapError classifies an internal error into a JSON-RPC error frame.
// Protocol-shaped errors (bad params, unknown session) map to -32602;
// everything else is an internal failure, -32603. Errors already typed
// as *rpcError pass through unchanged.
func mapError(err error) *rpcError {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	switch {
	case errors.Is(err, ErrUnknownSession), errors.Is(err, ErrEmptyPrompt), errors.Is(err, ErrSessionBusy):
		return invalidParams(err.Error())
	default:
		return internalError(err.Error())
	}
}
