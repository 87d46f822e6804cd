package domain

import "fmt"

// TransportError means the oracle call never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError carries a non-success status returned by the oracle.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API Error: %d", e.StatusCode)
	}
	return fmt.Sprintf("API Error: %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError means a success response could not be turned into labels.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return "malformed response: " + e.Reason
	}
	return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SetupError aborts a run before any record is processed.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed (%s): %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
