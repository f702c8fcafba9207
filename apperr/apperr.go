// Package apperr is the error taxonomy shared by the server and the client engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation      Kind = "validation"
	Unauthenticated Kind = "unauthenticated"
	Forbidden       Kind = "forbidden"
	Conflict        Kind = "conflict"
	NotFound        Kind = "not_found"
	RateLimited     Kind = "rate_limited"
	Transport       Kind = "transport"
	Internal        Kind = "internal"
)

// Messages surfaced to users for the rejections with fixed wording.
const (
	MsgAuthRequired      = "authentication required"
	MsgNotAuthorized     = "not authorized"
	MsgInvalidTransition = "invalid transition"
	MsgAlreadyVoted      = "already voted"
	MsgNotPending        = "issue can only be changed while pending"
	MsgIssueNotFound     = "issue not found"
	MsgSessionExpired    = "Session expired. Please login again."
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.E(apperr.Conflict, ""))
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validationf(format string, args ...any) *Error {
	return E(Validation, fmt.Sprintf(format, args...))
}

var (
	ErrAuthRequired      = E(Unauthenticated, MsgAuthRequired)
	ErrNotAuthorized     = E(Forbidden, MsgNotAuthorized)
	ErrInvalidTransition = E(Conflict, MsgInvalidTransition)
	ErrAlreadyVoted      = E(Conflict, MsgAlreadyVoted)
	ErrNotPending        = E(Conflict, MsgNotPending)
	ErrIssueNotFound     = E(NotFound, MsgIssueNotFound)
)

// KindOf reports the kind of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}

// IsAuthorization covers both "not authenticated" and "not author".
func IsAuthorization(err error) bool {
	k := KindOf(err)
	return k == Unauthenticated || k == Forbidden
}

// Retryable reports whether the caller may simply try again.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == Transport || k == RateLimited
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	case Transport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus is the inverse of HTTPStatus for responses that carry no code.
func FromStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return Validation
	case status == http.StatusUnauthorized:
		return Unauthenticated
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusConflict:
		return Conflict
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return Transport
	default:
		return Internal
	}
}
