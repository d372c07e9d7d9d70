package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// CompleteTwoFactor finishes a login that required an emailed code. The code
// is single-use; a wrong code leaves the pending challenge intact until it
// expires.
func (e *Engine) CompleteTwoFactor(ctx context.Context, email, code string) (*LoginResult, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and code are required", ErrValidation)
	}

	user, err := e.userStore.ByEmail(ctx, scope, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTwoFactorInvalid
		}
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorDisabled
	}
	if user.Locked(time.Now()) {
		return nil, &LockedError{Until: *user.LockedUntil}
	}
	if user.Status != StatusActive {
		return nil, ErrAccountInactive
	}

	if err := e.twoFactor.Consume(ctx, scope, user.ID, code); err != nil {
		return nil, err
	}

	return e.establishSession(ctx, scope, user)
}

// ResendTwoFactorCode replaces the pending challenge with a fresh code and
// mails it. There must be a login mid-flight: unknown email, 2FA disabled,
// and no pending challenge all yield the same ErrTwoFactorNotPending so the
// endpoint cannot be used to enumerate accounts.
func (e *Engine) ResendTwoFactorCode(ctx context.Context, email string) error {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return err
	}

	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := e.userStore.ByEmail(ctx, scope, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTwoFactorNotPending
		}
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotPending
	}
	pending, err := e.twoFactor.Exists(ctx, scope, user.ID)
	if err != nil {
		return err
	}
	if !pending {
		return ErrTwoFactorNotPending
	}

	return e.issueTwoFactorChallenge(ctx, scope, user)
}

// SetTwoFactor enables or disables email-code verification for the
// authenticated user after re-proving the password.
func (e *Engine) SetTwoFactor(ctx context.Context, userID, plaintext string, enabled bool) (*SanitizedUser, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if plaintext == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	user, err := e.userStore.ByID(ctx, scope, userID)
	if err != nil {
		return nil, err
	}

	match, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled != enabled {
		if err := e.userStore.SetTwoFactorEnabled(ctx, scope, user.ID, enabled); err != nil {
			return nil, err
		}
		user.TwoFactorEnabled = enabled
		e.log.WithFields(logrus.Fields{
			"tenant":  scope,
			"user":    user.ID,
			"enabled": enabled,
		}).Info("two-factor setting changed")
	}
	return sanitizeUser(user), nil
}
