package service

// ValidationError reports bad or missing input. The message is safe to show
// to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a lookup miss on a required resource.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// InternalError wraps store failures and other unexpected errors. Its detail
// must never reach the caller.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

func internal(op string, err error) error {
	return &InternalError{Op: op, Err: err}
}
