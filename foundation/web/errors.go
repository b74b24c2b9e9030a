package web

import "errors"

// shutdownError is returned by a handler that considers its error
// unrecoverable, telling App.Handle to begin a graceful shutdown rather
// than just responding to the one request.
type shutdownError struct {
	Message string
}

// NewShutdownError wraps message as an error that triggers a graceful
// application shutdown.
func NewShutdownError(message string) error {
	return &shutdownError{message}
}

func (e *shutdownError) Error() string {
	return e.Message
}

// IsShutdown reports whether err (or a wrapped error) is a shutdown error.
func IsShutdown(err error) bool {
	var se *shutdownError
	return errors.As(err, &se)
}
