package authkit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit/internal"
	"github.com/stagepage/authkit/jwt"
	"github.com/stagepage/authkit/password"
	"github.com/stagepage/authkit/session"
	"github.com/stagepage/authkit/tenant"
)

// Security alert types carried to the Mailer and used as dedup key material.
const (
	AlertTokenReuse      = "TOKEN_REUSE"
	AlertDeviceMismatch  = "DEVICE_MISMATCH"
	AlertAccountLocked   = "ACCOUNT_LOCKED"
	AlertPasswordChanged = "PASSWORD_CHANGED"
)

// Engine orchestrates the auth core. Construct it with the Builder; the zero
// value is not usable. An Engine is safe for concurrent use.
type Engine struct {
	config       Config
	userStore    UserStore
	sessionStore session.Store
	refreshStore *refreshTokenStore
	twoFactor    *twoFactorStore
	alerts       *securityAlertLimiter
	hasher       *password.Hasher
	jwtManager   *jwt.Manager
	mailer       Mailer
	log          *logrus.Logger
}

// Configuration returns a copy of the engine configuration.
func (e *Engine) Configuration() Config {
	return e.config
}

// ParseAccessToken verifies an access token and returns its claims. Used by
// HTTP middleware to authenticate requests.
func (e *Engine) ParseAccessToken(token string) (*jwt.Claims, error) {
	return e.jwtManager.ParseAccess(token)
}

// tenantFrom reads the tenant scope the resolver middleware attached.
func (e *Engine) tenantFrom(ctx context.Context) (tenant.ID, error) {
	id, ok := tenant.FromContext(ctx)
	if !ok {
		return "", ErrTenantUnresolved
	}
	return id, nil
}

// issueTokenPair mints an access/refresh pair for the session and stores the
// server-side refresh record bound to the caller's device.
func (e *Engine) issueTokenPair(ctx context.Context, scope tenant.ID, userID, sessionID string) (access, refresh string, err error) {
	access, err = e.jwtManager.IssueAccess(userID, sessionID, string(scope))
	if err != nil {
		return "", "", err
	}
	refresh, err = e.jwtManager.IssueRefresh(userID, sessionID, string(scope))
	if err != nil {
		return "", "", err
	}

	record := &refreshRecord{
		TokenHash: internal.HashToken(refresh),
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
	if err := e.refreshStore.Save(ctx, scope, sessionID, record, e.config.JWT.RefreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// sendSecurityAlert runs the dedup/ceiling gate and, if the alert survives,
// mails it. Failures are logged, never surfaced: alerting must not change
// the outcome of the operation that triggered it.
func (e *Engine) sendSecurityAlert(ctx context.Context, scope tenant.ID, user *UserRecord, alertType, detail string) {
	ip := clientIPFromContext(ctx)
	allowed, err := e.alerts.Allow(ctx, scope, user.ID, alertType, ip)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant": scope,
			"alert":  alertType,
		}).Warn("security alert gate unavailable")
		return
	}
	if !allowed {
		return
	}
	if err := e.mailer.SendSecurityAlert(ctx, user.Email, alertType, detail); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant": scope,
			"alert":  alertType,
		}).Warn("security alert delivery failed")
	}
}

// endAllUserSessions is the kill switch: every session terminated, every
// refresh record dropped. Used on reuse and device-mismatch detection.
func (e *Engine) endAllUserSessions(ctx context.Context, scope tenant.ID, userID string) error {
	ids, err := e.sessionStore.ActiveIDs(ctx, scope, userID)
	if err != nil {
		return err
	}
	if _, err := e.sessionStore.EndAllForUser(ctx, scope, userID); err != nil {
		return err
	}
	return e.refreshStore.DeleteMany(ctx, scope, ids)
}

func (e *Engine) sessionMeta(ctx context.Context) session.Meta {
	return session.Meta{
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		ExpiresAt: time.Now().Add(e.config.JWT.RefreshTTL),
	}
}
