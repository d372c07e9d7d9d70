package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit/internal"
	"github.com/stagepage/authkit/tenant"
)

// LoginResult is the outcome of a successful credential check. When
// TwoFactorRequired is set, only User is populated and the caller must
// complete the emailed-code step before tokens are issued.
type LoginResult struct {
	TwoFactorRequired bool
	User              *SanitizedUser
	AccessToken       string
	RefreshToken      string
	SessionID         string
	ExpiresAt         time.Time
}

// Login authenticates email/password for the tenant in ctx. Unknown email
// and wrong password are indistinguishable (ErrInvalidCredentials), a live
// lockout yields a *LockedError, and an INACTIVE account yields
// ErrAccountInactive before the password is ever checked.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if email == "" || plaintext == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := e.userStore.ByEmail(ctx, scope, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if user.Locked(now) {
		return nil, &LockedError{Until: *user.LockedUntil}
	}
	if user.Status != StatusActive {
		return nil, ErrAccountInactive
	}

	match, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, e.recordLoginFailure(ctx, scope, user, now)
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := e.userStore.ClearLoginFailures(ctx, scope, user.ID); err != nil {
			return nil, err
		}
	}

	if user.TwoFactorEnabled {
		if err := e.issueTwoFactorChallenge(ctx, scope, user); err != nil {
			return nil, err
		}
		return &LoginResult{TwoFactorRequired: true, User: sanitizeUser(user)}, nil
	}

	return e.establishSession(ctx, scope, user)
}

// recordLoginFailure bumps the counter and, on the tripping attempt, arms
// the lock and resets the counter so the account starts clean once the lock
// expires. The tripping attempt itself still reports invalid credentials.
func (e *Engine) recordLoginFailure(ctx context.Context, scope tenant.ID, user *UserRecord, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1

	if attempts >= e.config.Lockout.MaxAttempts {
		until := now.Add(e.config.Lockout.Duration)
		if err := e.userStore.RecordLoginFailure(ctx, scope, user.ID, 0, &until); err != nil {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"tenant": scope,
			"user":   user.ID,
		}).Warn("account locked after repeated login failures")
		e.sendSecurityAlert(ctx, scope, user, AlertAccountLocked, "Too many failed login attempts")
		return ErrInvalidCredentials
	}

	if err := e.userStore.RecordLoginFailure(ctx, scope, user.ID, attempts, nil); err != nil {
		return err
	}
	return ErrInvalidCredentials
}

// establishSession creates the session record and mints the token pair.
func (e *Engine) establishSession(ctx context.Context, scope tenant.ID, user *UserRecord) (*LoginResult, error) {
	sess, err := e.sessionStore.Create(ctx, scope, user.ID, e.sessionMeta(ctx))
	if err != nil {
		return nil, err
	}

	access, refresh, err := e.issueTokenPair(ctx, scope, user.ID, sess.SessionID)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"tenant":  scope,
		"user":    user.ID,
		"session": sess.SessionID,
	}).Info("login succeeded")

	return &LoginResult{
		User:         sanitizeUser(user),
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

func (e *Engine) issueTwoFactorChallenge(ctx context.Context, scope tenant.ID, user *UserRecord) error {
	code, err := internal.NewOTP(e.config.TwoFactor.CodeDigits)
	if err != nil {
		return err
	}
	if err := e.twoFactor.Save(ctx, scope, user.ID, code, e.config.TwoFactor.CodeTTL); err != nil {
		return err
	}
	// The login cannot proceed without the mail, so delivery failure is fatal
	// here, unlike security alerts.
	if err := e.mailer.SendTwoFactorCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("send two-factor code: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
