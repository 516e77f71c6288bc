package kaserr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the discriminant of an invocation outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindUsage
	KindUser
	KindForwarded
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindUsage:
		return "usage"
	case KindUser:
		return "user"
	case KindForwarded:
		return "forwarded"
	default:
		return "internal"
	}
}

// Exit codes of the kas process other than forwarded ones.
const (
	ExitSuccess  = 0
	ExitInternal = 1
	ExitUser     = 2
)

// IsUserError reports whether err, or any error it wraps, is a user kind.
func IsUserError(err error) bool {
	var ue userError
	return errors.As(err, &ue)
}

// Classify returns the outcome kind of err. A nil error is a success.
func Classify(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return KindUsage
	}
	var cmdErr *CommandExecError
	if errors.As(err, &cmdErr) && cmdErr.Forward {
		return KindForwarded
	}
	if IsUserError(err) {
		return KindUser
	}
	return KindInternal
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	switch Classify(err) {
	case KindSuccess:
		return ExitSuccess
	case KindForwarded:
		var cmdErr *CommandExecError
		errors.As(err, &cmdErr)
		return cmdErr.RetCode
	case KindUsage, KindUser:
		return ExitUser
	default:
		return ExitInternal
	}
}

// Trace renders a diagnostic trace for err. For an InternalError carrying a
// stack the stack is returned; otherwise the unwrap chain is listed, one
// layer per line with its dynamic type.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	var ie *InternalError
	if errors.As(err, &ie) && len(ie.Stack) > 0 {
		return fmt.Sprintf("%s\n%s", ie.Err, ie.Stack)
	}

	var b strings.Builder
	b.WriteString("error chain (outermost first):\n")
	writeChain(&b, err, 1)
	return b.String()
}

func writeChain(b *strings.Builder, err error, depth int) {
	fmt.Fprintf(b, "%s%T: %s\n", strings.Repeat("  ", depth), err, err)
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			writeChain(b, e, depth+1)
		}
	case interface{ Unwrap() error }:
		if next := u.Unwrap(); next != nil {
			writeChain(b, next, depth+1)
		}
	}
}
