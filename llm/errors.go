package llm

import "errors"

// Generation errors are classified at the HTTP boundary so the retry loop
// can tell a flaky endpoint from a rejected request. Transient errors are
// retried with backoff; fatal errors short-circuit retries and fallbacks.

// TransientError marks a failure that may succeed on retry, such as a rate
// limit or a 5xx response.
type TransientError struct {
	Err error
}

// NewTransientError classifies an error as retryable.
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure retrying cannot fix, such as a bad request or
// invalid credentials.
type FatalError struct {
	Err error
}

// NewFatalError classifies an error as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{Err: err}
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether the error chain contains a transient failure.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether the error chain contains a fatal failure.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
