// Package apperr defines the error kinds surfaced by the booking and payment
// paths. Every failure is returned with an explicit kind so the HTTP layer can
// map it without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Validation            Kind = "validation"
	Conflict              Kind = "conflict"
	NotFound              Kind = "not_found"
	MalformedNotification Kind = "malformed_notification"
	SignatureInvalid      Kind = "signature_invalid"
	UnknownOrder          Kind = "unknown_order"
	Processing            Kind = "processing"
)

type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, apperr.ErrConflict)
// works for any conflict.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && other.Field == "" && other.Message == "" && other.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation            = &Error{Kind: Validation}
	ErrConflict              = &Error{Kind: Conflict}
	ErrNotFound              = &Error{Kind: NotFound}
	ErrMalformedNotification = &Error{Kind: MalformedNotification}
	ErrSignatureInvalid      = &Error{Kind: SignatureInvalid}
	ErrUnknownOrder          = &Error{Kind: UnknownOrder}
	ErrProcessing            = &Error{Kind: Processing}
)

func Invalid(field, message string) *Error {
	return &Error{Kind: Validation, Field: field, Message: message}
}

func Conflicting(message string) *Error {
	return &Error{Kind: Conflict, Message: message}
}

func Missing(message string) *Error {
	return &Error{Kind: NotFound, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or Processing for errors that carry none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Processing
}
