package errors

import "errors"

// Session and lookup errors, returned to callers for user-facing feedback.
var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrNotFound      = errors.New("no profile with that friend code")
	ErrSelfReference = errors.New("cannot add yourself as a friend")
	ErrInvalidName   = errors.New("display name must be 1 to 40 characters")
	ErrCodeExhausted = errors.New("could not generate an unused friend code")
)

// Remote/transport errors. Background sync logs and swallows these.
var (
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrNoDocument        = errors.New("document does not exist")
)
