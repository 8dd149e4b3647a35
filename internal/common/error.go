// Package common defines shared constants and sentinel errors used across
// the service, repository and transport layers. Callers should use errors.Is
// to match these values; services wrap them with extra context via %w.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorStoreUnavailable means the database could not be reached. The
	// current call fails; the connector tries again on the next one.
	ErrorStoreUnavailable = errors.New("store unavailable")

	// Service-level errors.
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// Authentication errors. They are always reported to clients as a
	// generic denial.
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorInvalidOtp         = errors.New("invalid otp")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrorForbidden          = errors.New("forbidden")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Request lifecycle errors.
	ErrorInvalidTransition = errors.New("invalid transition")

	// ErrorNotificationFailure means the out-of-band notifier could not
	// deliver a message.
	ErrorNotificationFailure = errors.New("notification failure")
)
