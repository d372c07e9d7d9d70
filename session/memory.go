package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stagepage/authkit/tenant"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by tenant|sessionID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func memKey(scope tenant.ID, sessionID string) string {
	return string(scope) + "|" + sessionID
}

func (m *MemoryStore) Create(_ context.Context, scope tenant.ID, userID string, meta Meta) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:        NewID(),
		TenantID:  scope,
		UserID:    userID,
		SessionID: NewID(),
		LoginTime: now,
		LastSeen:  now,
		ExpiresAt: meta.ExpiresAt,
		Active:    true,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[memKey(scope, s.SessionID)] = s

	clone := *s
	return &clone, nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.ID, userID string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	m.mu.RLock()
	var active []*Session
	now := time.Now()
	for _, s := range m.sessions {
		if s.TenantID == scope && s.UserID == userID && s.Active && s.ExpiresAt.After(now) {
			clone := *s
			active = append(active, &clone)
		}
	}
	m.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		return active[i].LastSeen.After(active[j].LastSeen)
	})

	total := len(active)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &Page{Sessions: active[start:end], Total: total}, nil
}

func (m *MemoryStore) End(_ context.Context, scope tenant.ID, sessionID, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[memKey(scope, sessionID)]
	if !ok || !s.Active || s.UserID != userID {
		return nil, nil
	}
	endSession(s, time.Now())

	clone := *s
	return &clone, nil
}

func (m *MemoryStore) EndAllOther(_ context.Context, scope tenant.ID, userID, currentSessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for _, s := range m.sessions {
		if s.TenantID == scope && s.UserID == userID && s.Active && s.SessionID != currentSessionID {
			endSession(s, now)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) EndAllForUser(_ context.Context, scope tenant.ID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for _, s := range m.sessions {
		if s.TenantID == scope && s.UserID == userID && s.Active {
			endSession(s, now)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ActiveIDs(_ context.Context, scope tenant.ID, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, s := range m.sessions {
		if s.TenantID == scope && s.UserID == userID && s.Active {
			ids = append(ids, s.SessionID)
		}
	}
	return ids, nil
}

func (m *MemoryStore) Touch(_ context.Context, scope tenant.ID, sessionID string, at time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[memKey(scope, sessionID)]
	if !ok || !s.Active {
		return nil, nil
	}
	s.LastSeen = at

	clone := *s
	return &clone, nil
}

func (m *MemoryStore) GetCurrent(_ context.Context, scope tenant.ID, sessionID, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[memKey(scope, sessionID)]
	if !ok || !s.Active || s.UserID != userID {
		return nil, nil
	}

	clone := *s
	return &clone, nil
}

func endSession(s *Session, now time.Time) {
	out := endTime(now, s.ExpiresAt)
	s.Active = false
	s.LogoutTime = &out
}
