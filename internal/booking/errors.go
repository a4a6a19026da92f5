package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmissionRejected is wrapped when the gateway answers success=false.
	ErrSubmissionRejected = errors.New("booking: submission rejected")

	// ErrNoGateway is wrapped when a machine has no gateway to submit to.
	ErrNoGateway = errors.New("booking: no submission gateway configured")
)

// SubmissionError reports a failed submission. The draft is kept for retry.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s", e.Err, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("booking: submission failed: %v", e.Err)
	default:
		return "booking: submission failed: " + e.Message
	}
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
