// Package errcode classifies the core's sentinel errors into the kinds the
// decompression pipeline needs to decide whether a failure is retryable.
package errcode

import "errors"

// Kind is the class of failure a core operation raised.
type Kind int

const (
	// InvalidInput covers bad magic, bad version, bad opcode.
	InvalidInput Kind = iota
	// OutOfRange covers an unmapped guest address or an unresolved symbol.
	OutOfRange
	// Unimplemented covers an opcode or subopcode reached without execution support.
	Unimplemented
	// AllocationFailure covers a failed host mapping or an exhausted page free list.
	AllocationFailure
	// LogicError is reserved for internal invariant violations.
	LogicError
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case OutOfRange:
		return "out of range"
	case Unimplemented:
		return "unimplemented"
	case AllocationFailure:
		return "allocation failure"
	case LogicError:
		return "logic error"
	default:
		return "unknown error kind"
	}
}

// Error wraps a sentinel error with the kind a caller needs to act on it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err (or anything it wraps) was tagged with kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
