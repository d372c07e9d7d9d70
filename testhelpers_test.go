package authkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stagepage/authkit/session"
	"github.com/stagepage/authkit/tenant"
)

const testTenant = tenant.ID("tenant-1")

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*UserRecord
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*UserRecord)}
}

func (s *memUserStore) add(u *UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *u
	s.users[u.ID] = &clone
}

func (s *memUserStore) get(id string) *UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	clone := *u
	return &clone
}

func (s *memUserStore) ByEmail(_ context.Context, scope tenant.ID, email string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TenantID == scope && u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) ByID(_ context.Context, scope tenant.ID, id string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != scope {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *memUserStore) Create(_ context.Context, scope tenant.ID, user NewUser) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TenantID == scope && u.Email == user.Email {
			return nil, ErrEmailTaken
		}
	}
	rec := &UserRecord{
		ID:           uuid.NewString(),
		TenantID:     scope,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Role:         user.Role,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
	s.users[rec.ID] = rec
	clone := *rec
	return &clone, nil
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, scope tenant.ID, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != scope {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUserStore) RecordLoginFailure(_ context.Context, scope tenant.ID, id string, attempts int, lockedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != scope {
		return ErrUserNotFound
	}
	now := time.Now()
	u.FailedLoginAttempts = attempts
	u.LockedUntil = lockedUntil
	u.LastFailedLogin = &now
	return nil
}

func (s *memUserStore) ClearLoginFailures(_ context.Context, scope tenant.ID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != scope {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastFailedLogin = nil
	return nil
}

func (s *memUserStore) SetTwoFactorEnabled(_ context.Context, scope tenant.ID, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != scope {
		return ErrUserNotFound
	}
	u.TwoFactorEnabled = enabled
	return nil
}

func (s *memUserStore) MarkVerified(_ context.Context, scope tenant.ID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != scope {
		return ErrUserNotFound
	}
	u.Verified = true
	return nil
}

type sentAlert struct {
	Email string
	Type  string
}

type captureMailer struct {
	mu     sync.Mutex
	codes  []string
	alerts []sentAlert
	tokens []string
}

func (m *captureMailer) SendTwoFactorCode(_ context.Context, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *captureMailer) SendSecurityAlert(_ context.Context, email, alertType, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, sentAlert{Email: email, Type: alertType})
	return nil
}

func (m *captureMailer) SendVerificationLink(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *captureMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

func (m *captureMailer) codeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

func (m *captureMailer) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

type testEnv struct {
	engine   *Engine
	users    *memUserStore
	sessions *session.MemoryStore
	mailer   *captureMailer
	redis    *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "authd-test"
	// cheap argon2 profile so the suite stays fast
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := newMemUserStore()
	sessions := session.NewMemoryStore()
	mail := &captureMailer{}

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserStore(users).
		WithSessionStore(sessions).
		WithMailer(mail).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	return &testEnv{engine: engine, users: users, sessions: sessions, mailer: mail, redis: mr}
}

// addUser seeds an active account with the given password.
func (env *testEnv) addUser(t *testing.T, email, plaintext string, twoFactor bool) *UserRecord {
	t.Helper()
	hash, err := env.engine.hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &UserRecord{
		ID:               uuid.NewString(),
		TenantID:         testTenant,
		Email:            email,
		PasswordHash:     hash,
		Status:           StatusActive,
		TwoFactorEnabled: twoFactor,
		CreatedAt:        time.Now(),
	}
	env.users.add(u)
	return u
}

func testContext() context.Context {
	ctx := tenant.NewContext(context.Background(), testTenant)
	ctx = WithClientIP(ctx, "203.0.113.10")
	return WithUserAgent(ctx, "test-agent/1.0")
}

func testContextFrom(ip, userAgent string) context.Context {
	ctx := tenant.NewContext(context.Background(), testTenant)
	ctx = WithClientIP(ctx, ip)
	return WithUserAgent(ctx, userAgent)
}
