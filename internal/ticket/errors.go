package ticket

import (
	"errors"
	"fmt"
)

// ErrSubmitInProgress is returned when a submission is started while another is running
var ErrSubmitInProgress = errors.New("a ticket submission is already in progress")

// ValidationError rejects a payload before any network activity
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ExternalSubmissionError is returned when the proxy answers with a non-2xx status
type ExternalSubmissionError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *ExternalSubmissionError) Error() string {
	return e.Message
}

// MalformedResponseError is returned when a 2xx response carries no ticket id
type MalformedResponseError struct {
	StatusCode int
	Body       string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("no ticket ID in response (status %d)", e.StatusCode)
}
