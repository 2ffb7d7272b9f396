package errors

import "errors"

// MathdexError is the structured error type shared across mathdex. It
// stores only the code and the human-readable parts; subsystem,
// severity, and retryability come from the code on demand, so the two
// can never disagree.
type MathdexError struct {
	Code    Code
	Message string

	// Fields holds extra key-value context for logs.
	Fields map[string]string

	// Err is the wrapped underlying error, if any.
	Err error

	// Hint tells the user what to do about the error.
	Hint string
}

// Error renders as "[ERR_NNN_NAME] message".
func (e *MathdexError) Error() string {
	return "[" + e.Code.String() + "] " + e.Message
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *MathdexError) Unwrap() error {
	return e.Err
}

// Is matches structured errors by code, so two errors built from the
// same code compare equal under errors.Is regardless of message.
func (e *MathdexError) Is(target error) bool {
	t, ok := target.(*MathdexError)
	return ok && t.Code == e.Code
}

// WithField attaches a key-value pair for log output and returns the
// error for chaining.
func (e *MathdexError) WithField(key, value string) *MathdexError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[key] = value
	return e
}

// WithHint attaches a user-facing remedy and returns the error for
// chaining.
func (e *MathdexError) WithHint(s string) *MathdexError {
	e.Hint = s
	return e
}

// New creates a structured error. A nil cause is fine for errors that
// originate here rather than wrap a lower failure.
func New(code Code, message string, cause error) *MathdexError {
	return &MathdexError{Code: code, Message: message, Err: cause}
}

// asMathdex extracts a structured error from anywhere in err's chain.
func asMathdex(err error) (*MathdexError, bool) {
	var me *MathdexError
	ok := errors.As(err, &me)
	return me, ok
}

// CodeOf returns the code carried anywhere in err's chain. Plain
// errors report the zero Code, which grades as a non-retryable error
// in the analysis subsystem.
func CodeOf(err error) Code {
	if me, ok := asMathdex(err); ok {
		return me.Code
	}
	return 0
}
