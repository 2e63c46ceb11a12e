// Package common defines shared constants and sentinel errors used across
// client and server layers of notesync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Submission rejected before anything was written.
	ErrValidation = errors.New("validation error")

	// Durable storage failed; the operation left no trace and may be retried.
	ErrStorage = errors.New("storage error")

	// Delivery-side conditions.
	ErrBackpressureDegraded = errors.New("session degraded by backpressure")
	ErrSessionClosed        = errors.New("session closed")
	ErrAckRegression        = errors.New("acknowledgment below current position")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
