package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized covers missing or invalid member/device credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden signals a valid identity without a grant for the area.
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited signals the fixed-window request budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrDoorLocked signals an actuation lock (member+area or area-global)
	// is still held from a recent open.
	ErrDoorLocked = errors.New("door locked")
	// ErrConflict surfaces a duplicate-insert race on the active-job slot.
	ErrConflict = errors.New("conflict")
	// ErrUnknownArea is returned for area identifiers outside the registry.
	ErrUnknownArea = errors.New("unknown area")
)

// RetryAfterError is a policy denial carrying retry guidance. Reason is one
// of the sentinels above so callers can still use errors.Is.
type RetryAfterError struct {
	Reason     error
	RetryAfter time.Duration
	Message    string
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%s: retry after %s", e.Message, e.RetryAfter)
}

func (e *RetryAfterError) Unwrap() error { return e.Reason }

// RetryAfterSeconds returns the denial's retry hint rounded up to whole
// seconds, never below 1 so clients always get a usable Retry-After value.
func (e *RetryAfterError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
