package authkit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked signals a lockout in effect; prefer matching with
	// errors.Is and extracting the deadline via AsLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for INACTIVE accounts on any credential path.
	ErrAccountInactive = errors.New("account inactive")
	// ErrUserNotFound is returned by lookups that may legitimately miss.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by signup when the email is already in use.
	ErrEmailTaken = errors.New("email already in use")
	// ErrValidation covers missing or malformed input.
	ErrValidation = errors.New("invalid request")
	// ErrRefreshInvalid is the benign refresh failure: bad signature, expiry,
	// or a missing cache record (cache loss degrades to re-login).
	ErrRefreshInvalid = errors.New("refresh token expired or invalid")
	// ErrRefreshReuse signals a replayed, already-rotated refresh token.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrDeviceMismatch signals a refresh token presented from a device or
	// address other than the one it was issued to.
	ErrDeviceMismatch = errors.New("refresh token device mismatch")
	// ErrSessionNotFound is returned when a session lookup misses.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTwoFactorInvalid is returned for a wrong or already-consumed code.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorExpired is returned when the code on file has lapsed.
	ErrTwoFactorExpired = errors.New("two-factor code expired")
	// ErrTwoFactorNotPending is returned when no code is on file for the user.
	ErrTwoFactorNotPending = errors.New("no two-factor code pending")
	// ErrTwoFactorDisabled guards the 2FA completion path.
	ErrTwoFactorDisabled = errors.New("two-factor authentication not enabled")
	// ErrPasswordReuse rejects a password change to the current password.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrVerificationInvalid is returned for a bad email-verification token.
	ErrVerificationInvalid = errors.New("verification token invalid")
	// ErrEngineNotReady indicates a mis-built engine (programming error).
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps backend failures (Redis/Postgres down).
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrTenantUnresolved is returned when no tenant is attached to the context.
	ErrTenantUnresolved = errors.New("tenant not resolved")
)

// LockedError carries the lockout deadline so callers can report the
// remaining wait. It matches ErrAccountLocked under errors.Is.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes())
}

// Is reports whether target is ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RemainingMinutes returns the minutes until the lock expires, rounded up
// and never below 1 while the lock holds.
func (e *LockedError) RemainingMinutes() int {
	remaining := time.Until(e.Until)
	if remaining <= 0 {
		return 0
	}
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// AsLockedError unwraps err into a *LockedError when possible.
func AsLockedError(err error) (*LockedError, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
