package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/stagepage/authkit/session"
)

// SessionView is the caller-facing projection of one active session.
type SessionView struct {
	SessionID string `json:"sessionId"`
	LoginTime string `json:"loginTime"`
	LastSeen  string `json:"lastSeen"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IsCurrent bool   `json:"isCurrent"`
}

// SessionPage is one page of a user's sessions.
type SessionPage struct {
	Sessions []SessionView `json:"sessions"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

// Sessions lists the user's active sessions, most recently seen first.
// currentSessionID marks the session of the requesting device.
func (e *Engine) Sessions(ctx context.Context, userID, currentSessionID string, page, limit int) (*SessionPage, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := e.sessionStore.List(ctx, scope, userID, page, limit)
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(result.Sessions))
	for _, s := range result.Sessions {
		views = append(views, sessionView(s, currentSessionID))
	}
	return &SessionPage{Sessions: views, Total: result.Total, Page: page, Limit: limit}, nil
}

// EndSession terminates one of the user's sessions and drops its refresh
// record. Ending a session that is already gone succeeds without effect.
func (e *Engine) EndSession(ctx context.Context, userID, sessionID string) error {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrValidation)
	}

	if _, err := e.sessionStore.End(ctx, scope, sessionID, userID); err != nil {
		return err
	}
	_, err = e.refreshStore.Delete(ctx, scope, sessionID)
	return err
}

// EndOtherSessions terminates every session of the user except the current
// one and returns how many were ended.
func (e *Engine) EndOtherSessions(ctx context.Context, userID, currentSessionID string) (int, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	if currentSessionID == "" {
		return 0, fmt.Errorf("%w: current session id is required", ErrValidation)
	}

	ids, err := e.sessionStore.ActiveIDs(ctx, scope, userID)
	if err != nil {
		return 0, err
	}

	count, err := e.sessionStore.EndAllOther(ctx, scope, userID, currentSessionID)
	if err != nil {
		return 0, err
	}

	others := ids[:0]
	for _, id := range ids {
		if id != currentSessionID {
			others = append(others, id)
		}
	}
	if err := e.refreshStore.DeleteMany(ctx, scope, others); err != nil {
		return count, err
	}
	return count, nil
}

// CurrentSession fetches the caller's own session record.
func (e *Engine) CurrentSession(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	scope, err := e.tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	s, err := e.sessionStore.GetCurrent(ctx, scope, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	view := sessionView(s, sessionID)
	return &view, nil
}

func sessionView(s *session.Session, currentSessionID string) SessionView {
	return SessionView{
		SessionID: s.SessionID,
		LoginTime: s.LoginTime.UTC().Format(time.RFC3339),
		LastSeen:  s.LastSeen.UTC().Format(time.RFC3339),
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		IsCurrent: s.SessionID == currentSessionID,
	}
}
