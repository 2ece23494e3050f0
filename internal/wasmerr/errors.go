// Package wasmerr defines the error taxonomy shared by every pipeline stage: parse, resolve, validate, link,
// and trap. Each kind wraps an underlying cause and accumulates a context chain ("parsing code section",
// "validating function $f", ...) as the error propagates outward.
package wasmerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates the five error categories a module can fail at: parse, resolve, validate, link, trap.
type Kind int

const (
	KindParse Kind = iota
	KindResolve
	KindValidate
	KindLink
	KindTrap
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindResolve:
		return "resolve"
	case KindValidate:
		return "validate"
	case KindLink:
		return "link"
	case KindTrap:
		return "trap"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind to the process exit code a CLI front-end should report for an error of this kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindParse:
		return 2
	case KindResolve:
		return 3
	case KindValidate:
		return 4
	case KindLink:
		return 5
	case KindTrap:
		return 6
	default:
		return 1
	}
}

// TrapCode further classifies a KindTrap error by the runtime condition that raised it, so callers (the
// spectest harness in particular) can distinguish, say, a stack overflow from a divide-by-zero without
// parsing the message.
type TrapCode int

const (
	TrapUnreachable TrapCode = iota
	TrapIntegerDivideByZero
	TrapIntegerOverflow
	TrapInvalidConversionToInteger
	TrapOutOfBoundsMemoryAccess
	TrapOutOfBoundsTableAccess
	TrapIndirectCallTypeMismatch
	TrapUninitializedElement
	TrapCallStackExhaustion
)

func (c TrapCode) String() string {
	switch c {
	case TrapUnreachable:
		return "unreachable"
	case TrapIntegerDivideByZero:
		return "integer divide by zero"
	case TrapIntegerOverflow:
		return "integer overflow"
	case TrapInvalidConversionToInteger:
		return "invalid conversion to integer"
	case TrapOutOfBoundsMemoryAccess:
		return "out of bounds memory access"
	case TrapOutOfBoundsTableAccess:
		return "out of bounds table access"
	case TrapIndirectCallTypeMismatch:
		return "indirect call type mismatch"
	case TrapUninitializedElement:
		return "uninitialized element"
	case TrapCallStackExhaustion:
		return "call stack exhausted"
	default:
		return "trap"
	}
}

// Error is a tagged, context-chained error. Use New to construct one and Wrap to prepend context as the error
// propagates through nested calls.
type Error struct {
	kind    Kind
	cause   error
	context []string // innermost first; Error() prints outermost first.
	trap    TrapCode
	hasTrap bool
}

// New creates an Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{kind: kind, cause: cause}
}

// Newf creates an Error of the given kind from a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, cause: fmtErrorf(format, args...)}
}

// NewTrap creates a KindTrap Error tagged with the specific runtime condition that raised it.
func NewTrap(code TrapCode, format string, args ...interface{}) *Error {
	msg := code.String()
	if format != "" {
		msg = msg + ": " + fmtErrorf(format, args...).Error()
	}
	return &Error{kind: KindTrap, cause: fmtErrorf(msg), trap: code, hasTrap: true}
}

// TrapCode returns the specific trap condition and true, if e is a KindTrap error raised via NewTrap.
func (e *Error) TrapCode() (TrapCode, bool) { return e.trap, e.hasTrap }

// Wrap returns a copy of e with ctx prepended to its context chain. The original e is left untouched so the
// same sentinel can be wrapped along multiple call paths without aliasing.
func (e *Error) Wrap(ctx string) *Error {
	cp := *e
	cp.context = append(append([]string{}, e.context...), ctx)
	return &cp
}

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap supports errors.Is / errors.As against the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Error() string {
	var b strings.Builder
	for i := len(e.context) - 1; i >= 0; i-- {
		b.WriteString(e.context[i])
		b.WriteString(": ")
	}
	b.WriteString(e.cause.Error())
	return b.String()
}

// As is a convenience wrapper over errors.As for the common case of checking whether err is (or wraps) a
// *wasmerr.Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether err is, or wraps, an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.kind == kind
}

func fmtErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
