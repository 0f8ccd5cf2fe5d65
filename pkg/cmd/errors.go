package cmd

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDescriptor = errors.New("invalid command descriptor")
	ErrDuplicateCommand  = errors.New("duplicate command name")
	ErrLoadPanic         = errors.New("command factory panicked")
	ErrPublishFailed     = errors.New("failed to publish commands")
	ErrNoReplier         = errors.New("invocation has no reply channel")
)

// CommandError is an expected, user-facing failure raised by a hook or a
// command body (bad input, missing permission). Its Message is safe to
// show to the invoker.
type CommandError struct {
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewCommandError returns a CommandError with msg.
func NewCommandError(msg string) error {
	return &CommandError{Message: msg}
}

// Errorf formats a CommandError. A %w verb records the wrapped cause.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &CommandError{Message: err.Error(), Err: errors.Unwrap(err)}
}

// AsCommandError reports whether err is, or wraps, a CommandError.
func AsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// PanicError carries a value recovered from a panicking hook or handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
