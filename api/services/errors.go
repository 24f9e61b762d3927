package services

import (
	"fmt"
)

// Kind groups domain errors by how a caller should react to them.
type Kind int

const (
	KindInvalid Kind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindUnprocessable
	KindGone
)

// Error is a business-rule failure. Two errors match under errors.Is when
// their codes are equal, so details can be specialised per call.
type Error struct {
	Kind    Kind
	Code    string
	Details string
}

func (e *Error) Error() string {
	if e.Details == "" {
		return e.Code
	}
	return e.Code + ": " + e.Details
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e carrying the formatted details.
func (e *Error) With(format string, args ...any) *Error {
	cp := *e
	cp.Details = fmt.Sprintf(format, args...)
	return &cp
}

func newError(kind Kind, code, details string) *Error {
	return &Error{Kind: kind, Code: code, Details: details}
}

var (
	ErrMissingField      = newError(KindInvalid, "MissingField", "a required field is missing")
	ErrInvalidRequest    = newError(KindInvalid, "InvalidRequest", "malformed request")
	ErrInvalidItem       = newError(KindInvalid, "InvalidItem", "each item needs a type and a data payload")
	ErrInvalidImage      = newError(KindInvalid, "InvalidImage", "profile image must be a base64 JPEG data URI of at most 2 MiB")
	ErrInvalidCoordinate = newError(KindInvalid, "InvalidCoordinate", "latitude must be in [-90,90] and longitude in [-180,180]")
	ErrInvalidRadius     = newError(KindInvalid, "InvalidRadius", "radius must be a positive number of kilometers")
	ErrInvalidCategory   = newError(KindInvalid, "InvalidCategory", "category must be one of skills, education, experience")
	ErrInvalidResponse   = newError(KindInvalid, "InvalidResponse", "response must be approved or declined")

	ErrUserNotFound    = newError(KindNotFound, "UserNotFound", "user does not exist")
	ErrRequestNotFound = newError(KindNotFound, "RequestNotFound", "validation request does not exist")

	ErrDuplicateEmail   = newError(KindConflict, "DuplicateEmail", "email is already registered")
	ErrDuplicateRequest = newError(KindConflict, "DuplicateRequest", "an identical validation request already exists")
	ErrAlreadyValidated = newError(KindConflict, "AlreadyValidated", "this item is already validated by this user")

	ErrNotConnected = newError(KindForbidden, "NotConnected", "users must be connected to request a validation")
	ErrItemNotFound = newError(KindUnprocessable, "ItemNotFound", "the target user has no matching profile item")

	ErrRequestNotPending = newError(KindGone, "RequestNotPending", "validation request was already answered")
	ErrRequestExpired    = newError(KindGone, "RequestExpired", "validation request has expired")
)
