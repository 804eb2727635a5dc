package sessionguard

import (
	"errors"

	"github.com/gearbooks/sessionguard/session"
)

var (
	// ErrManagerNotReady is returned when a Manager method is called before
	// the Manager was built, or on a nil receiver.
	ErrManagerNotReady = errors.New("manager not initialized")
	// ErrUserIDRequired is returned when an operation is called with an empty user ID.
	ErrUserIDRequired = errors.New("user id required")
	// ErrSessionIDRequired is returned when an operation is called with an empty session ID.
	ErrSessionIDRequired = errors.New("session id required")
	// ErrSessionNotFound is returned when the target session does not exist in the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLimitExceeded is returned by CreateSession when a user already holds
	// the configured maximum of active sessions.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	// ErrRefreshRateLimited is returned by RotateRefreshToken when the per-session
	// refresh throttle denies the attempt before any state is read.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRotationContended is returned when a rotation kept losing the version race
	// beyond the configured retry budget. The caller may retry; no state was lost.
	ErrRotationContended = errors.New("rotation contended, retry")
)

// ErrStoreUnavailable marks operational store failures (timeouts, connection
// errors). It is re-exported from the session package so callers can classify
// transient errors without importing it.
var ErrStoreUnavailable = session.ErrStoreUnavailable
