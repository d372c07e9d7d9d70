package authkit

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/sirupsen/logrus"
)

// Signup carries the fields of a registration request.
type Signup struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Register creates an account for the tenant in ctx, mails a verification
// link, and logs the new account straight in: the result carries a session
// and token pair like Login. The account is usable before verification;
// verification only flips the Verified flag.
func (e *Engine) Register(ctx context.Context, req Signup) (*LoginResult, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	req.Email = normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := e.userStore.Create(ctx, scope, NewUser{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
	})
	if err != nil {
		return nil, err
	}

	token, err := e.jwtManager.IssueVerification(user.ID, string(scope))
	if err != nil {
		return nil, err
	}
	if err := e.mailer.SendVerificationLink(ctx, user.Email, token); err != nil {
		// The account exists; the link can be re-requested later.
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant": scope,
			"user":   user.ID,
		}).Warn("verification mail delivery failed")
	}

	e.log.WithFields(logrus.Fields{
		"tenant": scope,
		"user":   user.ID,
	}).Info("account created")

	return e.establishSession(ctx, scope, user)
}

// VerifyEmail consumes an email-verification token and marks the account
// verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}

	claims, err := e.jwtManager.ParseVerification(token)
	if err != nil || claims.TID != string(scope) {
		return ErrVerificationInvalid
	}

	return e.userStore.MarkVerified(ctx, scope, claims.UID)
}

// ChangePassword re-proves the current password, rejects reuse, and stores
// the new hash. Every other session of the user is terminated so a stolen
// session cannot outlive the credential it was opened with.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentSessionID, current, next string) error {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return err
	}
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", ErrValidation)
	}

	user, err := e.userStore.ByID(ctx, scope, userID)
	if err != nil {
		return err
	}

	match, err := e.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}
	if current == next {
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := e.userStore.UpdatePasswordHash(ctx, scope, user.ID, hash); err != nil {
		return err
	}

	if _, err := e.EndOtherSessions(ctx, userID, currentSessionID); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant": scope,
			"user":   userID,
		}).Warn("failed to end other sessions after password change")
	}

	e.sendSecurityAlert(ctx, scope, user, AlertPasswordChanged, "Your password was changed")

	e.log.WithFields(logrus.Fields{
		"tenant": scope,
		"user":   userID,
	}).Info("password changed")
	return nil
}
