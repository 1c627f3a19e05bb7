// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a status code.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindUpstreamGeneration Kind = "upstream_generation"
	KindPersistence        Kind = "persistence"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// Error is a classified error with a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether re-issuing the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUpstreamGeneration, KindPersistence, KindInternal:
		return true
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Validation(msg string) *Error { return New(KindValidation, msg) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

func Generation(msg string, err error) *Error { return Wrap(KindUpstreamGeneration, msg, err) }

func Persistence(msg string, err error) *Error { return Wrap(KindPersistence, msg, err) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Message returns the caller-safe message for err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
