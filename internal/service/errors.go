package service

import (
	"errors"
	"fmt"
)

// Kind classifies service failures for the transport layer.
type Kind int

const (
	// KindInternal is an unexpected failure; the message is generic.
	KindInternal Kind = iota
	// KindValidation is malformed or out-of-range input, or a broken business rule.
	KindValidation
	// KindNotFound means a referenced entity does not exist.
	KindNotFound
	// KindConflict is a duplicate registration, a full event or a taken email.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by every service operation. Message is safe to show to
// clients; Err carries the cause and is never exposed for KindInternal.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func notFound(msg string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: cause}
}

func conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: cause}
}

func internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
