// Package fault classifies client-facing failures so transports can map
// them to status codes without inspecting component internals.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal is the default for unclassified errors.
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
)

// Error carries a Kind together with a human-readable description.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Message returns the description without any wrapped cause, suitable
// for response bodies.
func (e *Error) Message() string { return e.msg }

func Invalid(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) error {
	return &Error{kind: KindUnauthenticated, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and description to an underlying error, keeping
// the cause reachable via errors.Is/As.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf reports the classification of err, KindInternal if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindInternal
}

func IsValidation(err error) bool      { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool        { return KindOf(err) == KindNotFound }
func IsUnauthenticated(err error) bool { return KindOf(err) == KindUnauthenticated }
