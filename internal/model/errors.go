package model

import "fmt"

// ConfigurationError is terminal for a job: it is reported as a failure and
// never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

var (
	ErrNoPrinterIP       = &ConfigurationError{Reason: "No printer IP configured"}
	ErrNoEnabledPrinters = &ConfigurationError{Reason: "No printer configured"}
)

// RemoteServiceError wraps a failed call to the POS backend.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// FormatError marks a payload that could not be turned into a receipt.
type FormatError struct {
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
