package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for transport mapping. The set is closed;
// handlers translate kinds into HTTP status codes without inspecting messages.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindAlreadyStarted      Kind = "already_started"
	KindNotAdmitted         Kind = "not_admitted"
	KindLocked              Kind = "locked"
	KindAttemptsExhausted   Kind = "attempts_exhausted"
	KindConfigMissing       Kind = "config_missing"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindValidation          Kind = "validation_error"
	KindConflictingState    Kind = "conflicting_state"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func NotFound(what string) *Error {
	return Newf(KindNotFound, "%s not found", what)
}

func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

func ProviderUnavailable(provider string, err error) *Error {
	return Wrap(KindProviderUnavailable, provider+" unavailable", err)
}
