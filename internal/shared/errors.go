package shared

import "errors"

var (
	// ErrSessionMissing indicates a request that bypassed the session middleware.
	ErrSessionMissing = errors.New("session missing")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
