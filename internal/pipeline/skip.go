package pipeline

// skipError marks a run that ended without a post but must not be retried.
type skipError struct {
	err error
}

func skip(err error) error {
	return &skipError{err: err}
}

func (e *skipError) Error() string { return e.err.Error() }

func (e *skipError) Unwrap() error { return e.err }
