package domain

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindValidation                  Kind = "validation"
	KindRecordNotFound              Kind = "record-not-found"
	KindOriginUnreachable           Kind = "origin-unreachable"
	KindMalformedFeed               Kind = "malformed-feed"
	KindTimeout                     Kind = "timeout"
	KindInsufficientCredits         Kind = "insufficient-credits"
	KindDestinationUnresolved       Kind = "destination-unresolved"
	KindIncompleteDestinationConfig Kind = "incomplete-destination-config"
	KindUnauthorized                Kind = "unauthorized"
	KindForbidden                   Kind = "forbidden"
	KindServerError                 Kind = "server-error"
	KindNotFound                    Kind = "not-found"
	KindInvalidScheduleTime         Kind = "invalid-schedule-time"
	KindIntegrityOrphan             Kind = "integrity-orphan"
	KindInternal                    Kind = "internal"
)

// Error is a classified failure carrying an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the bare sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation                  = &Error{Kind: KindValidation}
	ErrRecordNotFound              = &Error{Kind: KindRecordNotFound}
	ErrOriginUnreachable           = &Error{Kind: KindOriginUnreachable}
	ErrMalformedFeed               = &Error{Kind: KindMalformedFeed}
	ErrTimeout                     = &Error{Kind: KindTimeout}
	ErrInsufficientCredits         = &Error{Kind: KindInsufficientCredits}
	ErrDestinationUnresolved       = &Error{Kind: KindDestinationUnresolved}
	ErrIncompleteDestinationConfig = &Error{Kind: KindIncompleteDestinationConfig}
	ErrUnauthorized                = &Error{Kind: KindUnauthorized}
	ErrForbidden                   = &Error{Kind: KindForbidden}
	ErrServerError                 = &Error{Kind: KindServerError}
	ErrNotFound                    = &Error{Kind: KindNotFound}
	ErrInvalidScheduleTime         = &Error{Kind: KindInvalidScheduleTime}
	ErrIntegrityOrphan             = &Error{Kind: KindIntegrityOrphan}
)

// KindOf extracts the classification of err, KindInternal when unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
