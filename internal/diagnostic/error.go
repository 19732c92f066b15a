package diagnostic

import (
	"errors"
	"fmt"
)

//go:generate go tool stringer -type=Kind -trimprefix=Kind -output=kind_string.go

// Kind classifies a search failure.
type Kind int

const (
	_ Kind = iota // zero value is an unclassified failure

	// KindConfiguration means the resident directory endpoint cannot be resolved.
	KindConfiguration
	// KindTransport means the directory could not be fetched or its payload is invalid.
	KindTransport
)

// Sentinels for errors.Is comparisons against a Kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrTransport     = &Error{Kind: KindTransport}
)

// Error is a kinded search failure.
type Error struct {
	// Kind of the failure.
	Kind Kind
	// Op is the operation that failed, e.g. "resolve directory endpoint".
	Op string
	// Message is the human-readable description shown to the caller.
	Message string
	// Err is the underlying cause (if any).
	Err error
}

// Configuration returns a KindConfiguration error.
func Configuration(op, message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message, Err: err}
}

// Transport returns a KindTransport error.
func Transport(op, message string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: message, Err: err}
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}

	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, msg)
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
// A target with Op or Message set must match those too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	if t.Kind != e.Kind {
		return false
	}

	return (t.Op == "" || t.Op == e.Op) && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the Kind of the first *Error in err's chain, or the zero Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

// Message converts any error into the single line shown to the caller.
// Kinded errors use their Message; anything else falls back to err.Error().
// A nil error has no message.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}

	return err.Error()
}
