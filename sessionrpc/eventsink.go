package sessionrpc

import (
	"context"
	"encoding/json"

	"github.com/relaycore/turnkit/turn"
)

// updateSink translates one composite run's internal event stream into
// session/update notifications on the external transport. Events from
// the co-agent are suppressed unless the session was configured to
// surface them, per the fixed internal-to-external mapping.
type updateSink struct {
	sessionID        string
	primaryAgentName string
	observeCoagent   bool
	emit             func(sessionID string, update []byte) error
}

var _ turn.EventSink = (*updateSink)(nil)

func (u *updateSink) Publish(_ context.Context, event turn.Event) error {
	isPrimary := event.AgentName == u.primaryAgentName
	if !isPrimary && !u.observeCoagent {
		return nil
	}

	var update json.RawMessage
	var err error
	switch event.Type {
	case turn.EventTextDelta, turn.EventTextComplete:
		update, err = agentMessageChunk(event.Text)
	case turn.EventReasoningDelta, turn.EventReasoningComplete:
		update, err = agentThoughtChunk(event.Text)
	case turn.EventToolCallStart:
		update, err = toolCallStarted(event)
	case turn.EventToolCallEnd:
		update, err = toolCallUpdated(event)
	default:
		// TurnComplete, TaskComplete, Error, Cancelled, Usage, and
		// DoomLoopDetected carry no session/update shape of their own;
		// they surface through the terminal session/prompt response.
		return nil
	}
	if err != nil {
		return err
	}

	if err := u.emit(u.sessionID, update); err != nil {
		return err
	}
	if event.Type == turn.EventToolCallEnd && event.ToolName == "todo_write" {
		plan, err := planFromTodoWrite(event.ToolArgs)
		if err != nil {
			return err
		}
		return u.emit(u.sessionID, plan)
	}
	return nil
}
