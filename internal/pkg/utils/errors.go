package utils

import "github.com/pkg/errors"

// ErrNonRetryable indicates a job failure that must not be rescheduled,
// e.g. the job record is gone or the stored audio is empty
type ErrNonRetryable struct {
	err error
}

// NewErrNonRetryable creates new error
func NewErrNonRetryable(err error) error {
	return &ErrNonRetryable{err: err}
}

func (e *ErrNonRetryable) Error() string {
	return "non retryable error: " + e.err.Error()
}

func (e *ErrNonRetryable) Unwrap() error {
	return e.err
}

// IsNonRetryable checks if err chain contains ErrNonRetryable
func IsNonRetryable(err error) bool {
	var nr *ErrNonRetryable
	return errors.As(err, &nr)
}
