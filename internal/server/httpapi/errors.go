package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/xxiimcha/lk-web/internal/common"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a service error to its HTTP status and the message the
// client sees. Only validation and transition errors carry their detail;
// every other message is fixed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, detail(err, common.ErrorValidation, "Invalid request")
	case errors.Is(err, common.ErrorInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, common.ErrorInvalidOtp):
		return http.StatusUnauthorized, "Invalid or expired OTP"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "Not authorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "Admin access required"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, common.ErrorInvalidTransition):
		return http.StatusConflict, detail(err, common.ErrorInvalidTransition, "Invalid status transition")
	case errors.Is(err, common.ErrorNotificationFailure):
		return http.StatusBadGateway, "Failed to send notification"
	case errors.Is(err, common.ErrorStoreUnavailable):
		return http.StatusServiceUnavailable, "Service unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// detail returns the text wrapped after sentinel, or fallback when err
// does not start with it.
func detail(err, sentinel error, fallback string) string {
	prefix := sentinel.Error() + ": "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return fallback
	}
	return strings.TrimPrefix(msg, prefix)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Message: message})
}

// writeError answers with the mapped status. Server-side failures are
// logged with their full text, which never reaches the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error(r.Context(), "request failed",
			"request_id", RequestID(r.Context()), "status", status, "error", err)
	}
	writeStatus(w, status, msg)
}
