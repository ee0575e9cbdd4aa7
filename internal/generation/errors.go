package generation

import (
	"fmt"

	"github.com/jordanharrington/visualgate/internal/task"
)

// ValidationError rejects an inbound request before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TerminalError reports a task the remote no longer knows about. The caller
// has to resubmit.
type TerminalError struct {
	State   task.State
	Message string
}

func (e *TerminalError) Error() string {
	return e.Message
}
