package common

import "errors"

// Kind names the sentinel err matches, for logs and metric labels. nil is
// "ok"; anything unrecognised is "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrorValidation):
		return "validation"
	case errors.Is(err, ErrorInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrorInvalidOtp):
		return "invalid_otp"
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return "unauthorized"
	case errors.Is(err, ErrorForbidden):
		return "forbidden"
	case errors.Is(err, ErrorNotFound):
		return "not_found"
	case errors.Is(err, ErrorAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrorInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrorNotificationFailure):
		return "notification_failure"
	case errors.Is(err, ErrorStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
