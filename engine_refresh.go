package authkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit/internal"
	"github.com/stagepage/authkit/tenant"
)

// Refresh rotates a refresh token: the presented token is verified against
// the server-side record, a new access/refresh pair is minted, and the old
// token becomes unusable. A replayed (already-rotated) token or a token
// presented from another device is treated as theft: every session of the
// user is terminated and a deduplicated security alert goes out.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrValidation)
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrRefreshInvalid
	}
	if claims.TID != string(scope) {
		return nil, ErrRefreshInvalid
	}

	record, err := e.refreshStore.Get(ctx, scope, claims.SID)
	if err != nil {
		if errors.Is(err, errRefreshRecordNotFound) {
			// Cache loss (restart, eviction) degrades to re-login; no alarm.
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if record.UserID != claims.UID {
		return nil, ErrRefreshInvalid
	}

	given := internal.HashToken(refreshToken)
	if subtle.ConstantTimeCompare(given[:], record.TokenHash[:]) != 1 {
		return nil, e.handleCompromise(ctx, scope, claims.UID, AlertTokenReuse,
			"A previously used refresh token was presented again", ErrRefreshReuse)
	}

	if deviceMismatch(record, clientIPFromContext(ctx), userAgentFromContext(ctx)) {
		return nil, e.handleCompromise(ctx, scope, claims.UID, AlertDeviceMismatch,
			"A refresh token was presented from an unrecognized device", ErrDeviceMismatch)
	}

	sess, err := e.sessionStore.GetCurrent(ctx, scope, claims.SID, claims.UID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		_, _ = e.refreshStore.Delete(ctx, scope, claims.SID)
		return nil, ErrRefreshInvalid
	}

	user, err := e.userStore.ByID(ctx, scope, claims.UID)
	if err != nil {
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrAccountInactive
	}

	access, refresh, err := e.issueTokenPair(ctx, scope, user.ID, sess.SessionID)
	if err != nil {
		return nil, err
	}

	if _, err := e.sessionStore.Touch(ctx, scope, sess.SessionID, time.Now()); err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         sanitizeUser(user),
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// handleCompromise is the kill switch: end every session, drop every refresh
// record, alert the user. The teardown happens even if alerting fails.
func (e *Engine) handleCompromise(ctx context.Context, scope tenant.ID, userID, alertType, detail string, cause error) error {
	e.log.WithFields(logrus.Fields{
		"tenant": scope,
		"user":   userID,
		"alert":  alertType,
	}).Warn("refresh token compromise detected")

	if err := e.endAllUserSessions(ctx, scope, userID); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant": scope,
			"user":   userID,
		}).Error("session teardown failed after compromise detection")
	}

	if user, err := e.userStore.ByID(ctx, scope, userID); err == nil {
		e.sendSecurityAlert(ctx, scope, user, alertType, detail)
	}

	return cause
}

// Logout ends the caller's session and invalidates its refresh token.
// Logging out an already-ended session is a no-op.
func (e *Engine) Logout(ctx context.Context, userID, sessionID string) error {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return err
	}
	if userID == "" || sessionID == "" {
		return fmt.Errorf("%w: session identity is required", ErrValidation)
	}

	if _, err := e.sessionStore.End(ctx, scope, sessionID, userID); err != nil {
		return err
	}
	_, err = e.refreshStore.Delete(ctx, scope, sessionID)
	return err
}

func deviceMismatch(record *refreshRecord, ip, userAgent string) bool {
	if record.IP != "" && ip != "" && record.IP != ip {
		return true
	}
	if record.UserAgent != "" && userAgent != "" && record.UserAgent != userAgent {
		return true
	}
	return false
}
