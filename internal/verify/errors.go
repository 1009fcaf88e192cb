package verify

import (
	"fmt"

	"github.com/quasarlabs/starkverify/pkg/client"
)

// TerminalFailureError is the authoritative failure outcome reported by
// the verification service. It is never retried automatically.
type TerminalFailureError struct {
	JobID   string
	Status  client.JobStatus
	Message string
}

func (e *TerminalFailureError) Error() string {
	return fmt.Sprintf("verification %s (job %s): %s", e.Status, e.JobID, e.Message)
}
