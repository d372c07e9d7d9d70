package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepage/authkit"
	"github.com/stagepage/authkit/tenant"
)

// UserStore is the Postgres-backed authkit.UserStore.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore wraps a pgx pool as a UserStore.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, tenant_id, email, password_hash, name, role, status, verified,
	two_factor_enabled, failed_login_attempts, locked_until, last_failed_login, created_at`

func scanUser(row pgx.Row) (*authkit.UserRecord, error) {
	var u authkit.UserRecord
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Status, &u.Verified,
		&u.TwoFactorEnabled, &u.FailedLoginAttempts, &u.LockedUntil, &u.LastFailedLogin, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) ByEmail(ctx context.Context, scope tenant.ID, email string) (*authkit.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`,
		scope, email,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, fmt.Errorf("pg: user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) ByID(ctx context.Context, scope tenant.ID, id string) (*authkit.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`,
		scope, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, fmt.Errorf("pg: user by id: %w", err)
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, scope tenant.ID, user authkit.NewUser) (*authkit.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, tenant_id, email, password_hash, name, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+userColumns,
		uuid.NewString(), scope, user.Email, user.PasswordHash, user.Name, user.Role,
		authkit.StatusActive, time.Now(),
	)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, authkit.ErrEmailTaken
		}
		return nil, fmt.Errorf("pg: create user: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, scope tenant.ID, id, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $3 WHERE tenant_id = $1 AND id = $2`,
		scope, id, hash,
	)
	if err != nil {
		return fmt.Errorf("pg: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) RecordLoginFailure(ctx context.Context, scope tenant.ID, id string, attempts int, lockedUntil *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET failed_login_attempts = $3,
		     locked_until = $4,
		     last_failed_login = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		scope, id, attempts, lockedUntil,
	)
	if err != nil {
		return fmt.Errorf("pg: record login failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ClearLoginFailures(ctx context.Context, scope tenant.ID, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET failed_login_attempts = 0,
		     locked_until = NULL,
		     last_failed_login = NULL
		 WHERE tenant_id = $1 AND id = $2`,
		scope, id,
	)
	if err != nil {
		return fmt.Errorf("pg: clear login failures: %w", err)
	}
	return nil
}

func (s *UserStore) SetTwoFactorEnabled(ctx context.Context, scope tenant.ID, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET two_factor_enabled = $3 WHERE tenant_id = $1 AND id = $2`,
		scope, id, enabled,
	)
	if err != nil {
		return fmt.Errorf("pg: set two-factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) MarkVerified(ctx context.Context, scope tenant.ID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET verified = true WHERE tenant_id = $1 AND id = $2`,
		scope, id,
	)
	if err != nil {
		return fmt.Errorf("pg: mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}
