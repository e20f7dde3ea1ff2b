package service

import "errors"

// Request validation failures: reported to the caller as client errors,
// never retried and never side-effecting.
var (
	ErrMissingParams          = errors.New("missing or malformed request parameters")
	ErrPasswordFieldsRequired = errors.New("both password fields are required")
	ErrPasswordMismatch       = errors.New("passwords do not match")
)

// Authentication failure: the token is missing, malformed, expired, or its
// signature does not verify. Deliberately a single sentinel so callers can
// not distinguish which check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

// Conflict outcomes: terminal, idempotent, informational. They carry no
// failure semantics and must never trigger a side effect.
var (
	ErrAlreadyDecided = errors.New("decision already submitted")
	ErrAlreadyReset   = errors.New("password already reset")
)

// ErrNoResetSession reports a reset link for which no session was ever
// issued (or the unused session has since expired).
var ErrNoResetSession = errors.New("no active reset session")
