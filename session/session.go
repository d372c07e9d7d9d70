// Package session persists login sessions: one record per device/login,
// independent of any token pair, used for active-session listing and
// termination. All operations are tenant-scoped.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stagepage/authkit/tenant"
)

// Session is one authenticated device/login instance. Active is true only
// between LoginTime and the earlier of logout and expiry.
type Session struct {
	ID         string
	TenantID   tenant.ID
	UserID     string
	SessionID  string
	LoginTime  time.Time
	LogoutTime *time.Time
	LastSeen   time.Time
	ExpiresAt  time.Time
	Active     bool
	IPAddress  string
	UserAgent  string
}

// Meta carries per-login attributes captured at creation.
type Meta struct {
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
}

// Page is one page of a user's active sessions plus the total count.
type Page struct {
	Sessions []*Session
	Total    int
}

// Store is the persistence interface for session records. Lookups that miss
// return (nil, nil); backends reserve errors for genuine failures.
type Store interface {
	// Create inserts an active session with a fresh opaque session ID.
	Create(ctx context.Context, scope tenant.ID, userID string, meta Meta) (*Session, error)
	// List returns active sessions ordered most-recently-seen first.
	List(ctx context.Context, scope tenant.ID, userID string, page, limit int) (*Page, error)
	// End terminates the matching active session. The logout time is capped
	// at the session's expiry so a session never logs out in the future.
	// Returns (nil, nil) when no matching active session exists.
	End(ctx context.Context, scope tenant.ID, sessionID, userID string) (*Session, error)
	// EndAllOther terminates every active session of the user except
	// currentSessionID and returns the number terminated.
	EndAllOther(ctx context.Context, scope tenant.ID, userID, currentSessionID string) (int, error)
	// EndAllForUser terminates every active session of the user.
	EndAllForUser(ctx context.Context, scope tenant.ID, userID string) (int, error)
	// ActiveIDs returns the session IDs of the user's active sessions.
	ActiveIDs(ctx context.Context, scope tenant.ID, userID string) ([]string, error)
	// Touch bumps the last-seen timestamp of an active session.
	// Returns (nil, nil) when the session is not active.
	Touch(ctx context.Context, scope tenant.ID, sessionID string, at time.Time) (*Session, error)
	// GetCurrent fetches an active session matching BOTH sessionID and
	// userID, guarding against callers probing other users' sessions.
	GetCurrent(ctx context.Context, scope tenant.ID, sessionID, userID string) (*Session, error)
}

// NewID returns a fresh opaque session identifier.
func NewID() string {
	return uuid.NewString()
}

// endTime caps the logout time at the session expiry.
func endTime(now, expiresAt time.Time) time.Time {
	if expiresAt.Before(now) {
		return expiresAt
	}
	return now
}
