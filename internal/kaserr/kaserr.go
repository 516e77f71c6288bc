// Package kaserr defines the error kinds that cross the plugin boundary and
// the mapping from those kinds to process exit codes.
//
// Plugins return the most specific kind they can determine. User kinds
// (bad configuration, failed fetches, failing external commands) exit with
// code 2, while anything unanticipated exits with code 1 and a diagnostic
// trace. Only the top-level translator in package cmd turns a kind into an
// exit code; nothing in between interprets or downgrades an error.
package kaserr

import (
	"fmt"
	"strings"
)

// userError is implemented by every error kind caused by the user's input or
// environment rather than by a defect in the tool.
type userError interface {
	error
	userError()
}

// UserError is a plugin-detected failure caused by configuration, input or
// environment. It is reported as a single error line without a trace.
type UserError struct {
	Msg string
	Err error // optional cause
}

// NewUserError creates a UserError with a formatted message.
func NewUserError(format string, a ...any) *UserError {
	return &UserError{Msg: fmt.Sprintf(format, a...)}
}

func (e *UserError) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *UserError) Unwrap() error { return e.Err }

func (e *UserError) userError() {}

// CommandExecError reports a failing external command. When Forward is set
// the command's own return code becomes the process exit code.
type CommandExecError struct {
	Cmd     []string
	RetCode int
	Forward bool
}

func (e *CommandExecError) Error() string {
	return fmt.Sprintf("Command %q failed with error %d", strings.Join(e.Cmd, " "), e.RetCode)
}

func (e *CommandExecError) userError() {}

// ArgsCombinationError reports command line arguments that are valid on their
// own but cannot be used together.
type ArgsCombinationError struct {
	Msg string
}

func (e *ArgsCombinationError) Error() string {
	return "Invalid combination of arguments: " + e.Msg
}

func (e *ArgsCombinationError) userError() {}

// UsageError reports malformed command line input detected by the argument
// grammar itself. Usage holds the usage text of the offending command.
type UsageError struct {
	Err   error
	Usage string
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// InternalError wraps an unanticipated failure together with the stack at
// the point it was captured (typically a recovered panic).
type InternalError struct {
	Err   error
	Stack []byte
}

func (e *InternalError) Error() string { return e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }
