// Package errs defines the failure taxonomy shared by every stage of an
// invoice cycle.
//
// Each failure carries one of four kinds:
//   - ErrMissingData: a required precondition is absent. Fatal.
//   - ErrExternalService: a collaborator call failed despite valid input.
//     Fatal for the stage unless the stage processes items one by one.
//   - ErrExtractionFailed: hours extraction produced no usable value.
//     Recovered locally with the fallback hours, never fatal.
//   - ErrIO: a local filesystem operation failed. Fatal.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingData is returned when a required precondition is absent: fewer
	// than two usable threads, no invoice tab, a named tab that does not exist
	// or an HTML body without its section markers.
	ErrMissingData = errors.New("missing required data")

	// ErrExternalService is returned when a render, export, write or draft
	// call fails.
	ErrExternalService = errors.New("external service call failed")

	// ErrExtractionFailed is returned when hours extraction yields no usable value.
	ErrExtractionFailed = errors.New("hours extraction failed")

	// ErrIO is returned when a local file or directory cannot be created or written.
	ErrIO = errors.New("local filesystem operation failed")
)

// CycleError wraps a failure with the operation that produced it and its kind.
type CycleError struct {
	// Op is the operation that failed (e.g., "Allocate", "ExportTabAsPDF").
	Op string

	// Kind is one of the sentinel errors of this package.
	Kind error

	// Err is the underlying cause, if any.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CycleError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind as well as anything in the cause chain.
func (e *CycleError) Is(target error) bool {
	return e.Kind == target
}

// New creates a CycleError of the given kind.
func New(op string, kind error, err error, details string) *CycleError {
	return &CycleError{
		Op:      op,
		Kind:    kind,
		Err:     err,
		Details: details,
	}
}

// MissingData reports an absent precondition.
func MissingData(op, details string) error {
	return New(op, ErrMissingData, nil, details)
}

// External wraps a failed collaborator call. A nil err yields nil.
func External(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return err // Already classified
	}
	return New(op, ErrExternalService, err, details)
}

// IO wraps a failed filesystem operation. A nil err yields nil.
func IO(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	return New(op, ErrIO, err, details)
}

// Extraction wraps a failed hours extraction. A nil err yields nil.
func Extraction(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	return New(op, ErrExtractionFailed, err, details)
}
