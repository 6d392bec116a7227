// Package apperr defines the error taxonomy shared by every workflow
// operation. Callers branch on Kind, never on message text.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Validation   Kind = "validation"
	NotFound     Kind = "not_found"
	Permission   Kind = "permission"
	Conflict     Kind = "conflict"
	Dependency   Kind = "dependency"
	Unauthorized Kind = "unauthorized"
	Canceled     Kind = "canceled"
	Internal     Kind = "internal"
)

// Error is a classified failure. Msg is safe to show to end users; Err
// carries the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. A deadline
// counts as a Dependency failure and a cancellation by the caller as
// Canceled, including when an Internal or Dependency wrapper sits on top.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ctxKind Kind
	switch {
	case errors.Is(err, context.Canceled):
		ctxKind = Canceled
	case errors.Is(err, context.DeadlineExceeded):
		ctxKind = Dependency
	}
	var e *Error
	if errors.As(err, &e) {
		if ctxKind != "" && (e.Kind == Internal || e.Kind == Dependency) {
			return ctxKind
		}
		return e.Kind
	}
	if ctxKind != "" {
		return ctxKind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the user-facing message for err. Internal failures
// never expose their detail.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	switch KindOf(err) {
	case Dependency:
		return "dependency unavailable"
	case Canceled:
		return "request canceled"
	}
	return "internal error"
}
