// Package apperrors defines the stable, machine-comparable error kinds
// used throughout the gateway, wrapped with a pkg/errors context chain
// for diagnostics. It is the Go equivalent of the original service's
// ErrorKind/ErrorContext/ectx! chain.
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a closed set of error categories. Kinds are stable across
// releases so callers can branch on them (e.g. the HTTP API maps Kind
// to a status code).
type Kind string

const (
	KindTransport  Kind = "transport"
	KindTimeout    Kind = "timeout"
	KindDecode     Kind = "decode"
	KindHex        Kind = "hex"
	KindTopics     Kind = "topics"
	KindOverflow   Kind = "overflow"
	KindBroker     Kind = "broker"
	KindInternal   Kind = "internal"
	KindBadRequest Kind = "bad_request"
)

// Error carries a Kind alongside a pkg/errors-wrapped context chain so
// callers keep full diagnostics while still being able to compare on
// Kind alone.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *Error) Cause() error { return e.err }

func (e *Error) Unwrap() error { return e.err }

// KindOf returns the error's category, or KindInternal if err is not an
// *Error produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// New builds a new root error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.New(msg)}
}

// Newf builds a new root error of the given kind with formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap attaches a Kind and context message to an existing error.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf attaches a Kind and formatted context message to an existing error.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrapf(err, format, args...)}
}
