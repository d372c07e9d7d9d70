package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stagepage/authkit"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &apiError{Message: message}})
}

// writeError maps engine errors to HTTP statuses. Refresh failures all carry
// the same client message so callers cannot distinguish benign expiry from
// detection outcomes; the status still separates them for the frontend's
// redirect logic.
func writeError(w http.ResponseWriter, err error) {
	if le, ok := authkit.AsLockedError(err); ok {
		writeErrorMessage(w, http.StatusLocked,
			fmt.Sprintf("Account locked. Try again in %d minutes.", le.RemainingMinutes()))
		return
	}

	switch {
	case errors.Is(err, authkit.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authkit.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, authkit.ErrAccountInactive):
		writeErrorMessage(w, http.StatusForbidden, "Account is inactive")
	case errors.Is(err, authkit.ErrEmailTaken):
		writeErrorMessage(w, http.StatusConflict, "Email already in use")
	case errors.Is(err, authkit.ErrRefreshReuse), errors.Is(err, authkit.ErrDeviceMismatch):
		writeErrorMessage(w, http.StatusForbidden, "Session expired. Please log in again.")
	case errors.Is(err, authkit.ErrRefreshInvalid):
		writeErrorMessage(w, http.StatusUnauthorized, "Session expired. Please log in again.")
	case errors.Is(err, authkit.ErrTwoFactorInvalid), errors.Is(err, authkit.ErrTwoFactorExpired),
		errors.Is(err, authkit.ErrTwoFactorNotPending):
		writeErrorMessage(w, http.StatusUnauthorized, "Invalid or expired verification code")
	case errors.Is(err, authkit.ErrTwoFactorDisabled):
		writeErrorMessage(w, http.StatusBadRequest, "Two-factor authentication is not enabled")
	case errors.Is(err, authkit.ErrPasswordReuse):
		writeErrorMessage(w, http.StatusBadRequest, "New password must differ from current password")
	case errors.Is(err, authkit.ErrVerificationInvalid):
		writeErrorMessage(w, http.StatusBadRequest, "Verification link is invalid or expired")
	case errors.Is(err, authkit.ErrSessionNotFound), errors.Is(err, authkit.ErrUserNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, authkit.ErrTenantUnresolved):
		writeErrorMessage(w, http.StatusBadRequest, "Tenant not resolved")
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
