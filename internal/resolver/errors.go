package resolver

import (
	"errors"
	"fmt"
)

// ErrBoundary is returned when the resolver has no tile at the requested
// page, row or column. It marks the edge of a grid or the end of a document
// and is not a failure.
var ErrBoundary = errors.New("no tile at requested position")

// TransientError is a request-level failure that may succeed on retry:
// network errors, truncated bodies and unexpected HTTP statuses.
type TransientError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient resolver failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient resolver failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError is a failure outside the anticipated taxonomy, such as an
// undecodable tile. It aborts the run.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal resolver failure: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
