package authkit

import (
	"context"
	"time"

	"github.com/stagepage/authkit/tenant"
)

// UserStatus gates whether an account may authenticate.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
)

// UserRecord is the stored shape of an account, including lockout counters.
// It never leaves the engine; handlers receive a SanitizedUser.
type UserRecord struct {
	ID                  string
	TenantID            tenant.ID
	Email               string
	PasswordHash        string
	Name                string
	Role                string
	Status              UserStatus
	Verified            bool
	TwoFactorEnabled    bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastFailedLogin     *time.Time
	CreatedAt           time.Time
}

// Locked reports whether a lockout is in effect at now.
func (u *UserRecord) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// NewUser carries the fields required to create an account.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Role         string
}

// UserStore is the persistence interface for account records. All operations
// are tenant-scoped. Lookup misses return ErrUserNotFound.
type UserStore interface {
	ByEmail(ctx context.Context, scope tenant.ID, email string) (*UserRecord, error)
	ByID(ctx context.Context, scope tenant.ID, id string) (*UserRecord, error)
	Create(ctx context.Context, scope tenant.ID, user NewUser) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, scope tenant.ID, id, hash string) error
	// RecordLoginFailure increments the failure counter and, when locking,
	// sets the deadline and resets the counter to zero in the same write.
	RecordLoginFailure(ctx context.Context, scope tenant.ID, id string, attempts int, lockedUntil *time.Time) error
	// ClearLoginFailures zeroes the counter and clears any lock deadline.
	ClearLoginFailures(ctx context.Context, scope tenant.ID, id string) error
	SetTwoFactorEnabled(ctx context.Context, scope tenant.ID, id string, enabled bool) error
	MarkVerified(ctx context.Context, scope tenant.ID, id string) error
}

// SanitizedUser is the caller-facing projection of an account. It carries no
// password hash and no lockout bookkeeping.
type SanitizedUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name,omitempty"`
	Role             string `json:"role,omitempty"`
	Verified         bool   `json:"verified"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func sanitizeUser(u *UserRecord) *SanitizedUser {
	return &SanitizedUser{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		Verified:         u.Verified,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// Mailer delivers outbound mail. Implementations must be safe for concurrent
// use; the engine treats delivery failures as non-fatal except for two-factor
// codes, where the login cannot proceed without the mail.
type Mailer interface {
	SendTwoFactorCode(ctx context.Context, email, code string) error
	SendSecurityAlert(ctx context.Context, email, alertType, detail string) error
	SendVerificationLink(ctx context.Context, email, token string) error
}
