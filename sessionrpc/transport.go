package sessionrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxFrameBytes bounds one line-delimited JSON-RPC frame; the default
// bufio.Scanner token limit is too small for a prompt carrying a large
// file's contents inline.
const maxFrameBytes = 16 * 1024 * 1024

// Serve reads newline-delimited JSON-RPC frames from r until EOF,
// dispatching each to the Server and writing its response (if any) to
// w; ctx is passed to every dispatched request but does not stop the
// read loop. Requests for distinct sessions are dispatched concurrently;
// session/prompt handling within one session serializes on that
// session's own lock, so ordering per session still holds.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	s.write = func(env envelope) error { return encoder.Encode(env) }

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)

	group, groupCtx := errgroup.WithContext(ctx)
	var inFlight sync.WaitGroup

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}

		var in envelope
		if err := json.Unmarshal(line, &in); err != nil {
			resp := newErrorResponse(nil, invalidParams("malformed JSON-RPC frame: "+err.Error()))
			if writeErr := s.writeEnvelope(resp); writeErr != nil {
				return writeErr
			}
			continue
		}

		inFlight.Add(1)
		group.Go(func() error {
			defer inFlight.Done()
			resp, err := s.handle(groupCtx, in)
			if err != nil {
				return fmt.Errorf("dispatch %s: %w", in.Method, err)
			}
			if resp != nil {
				return s.writeEnvelope(*resp)
			}
			return nil
		})
	}

	inFlight.Wait()
	if err := group.Wait(); err != nil {
		return err
	}
	return scanner.Err()
}
