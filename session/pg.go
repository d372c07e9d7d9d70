package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepage/authkit/tenant"
)

// PGStore is the Postgres-backed Store implementation.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a pgx pool as a Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const sessionColumns = `id, tenant_id, user_id, session_id, login_time, logout_time, last_seen, expires_at, is_active, ip_address, user_agent`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.TenantID, &s.UserID, &s.SessionID,
		&s.LoginTime, &s.LogoutTime, &s.LastSeen, &s.ExpiresAt,
		&s.Active, &s.IPAddress, &s.UserAgent,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PGStore) Create(ctx context.Context, scope tenant.ID, userID string, meta Meta) (*Session, error) {
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

	_, err := p.pool.Exec(ctx,
		`INSERT INTO sessions (id, tenant_id, user_id, session_id, login_time, last_seen, expires_at, is_active, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.TenantID, s.UserID, s.SessionID, s.LoginTime, s.LastSeen, s.ExpiresAt, s.Active, s.IPAddress, s.UserAgent,
	)
	if err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return s, nil
}

func (p *PGStore) List(ctx context.Context, scope tenant.ID, userID string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	rows, err := p.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE tenant_id = $1 AND user_id = $2 AND is_active = true AND expires_at > NOW()
		 ORDER BY last_seen DESC
		 LIMIT $3 OFFSET $4`,
		scope, userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	result := &Page{Sessions: []*Session{}}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("session: list scan: %w", err)
		}
		result.Sessions = append(result.Sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: list rows: %w", err)
	}

	err = p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE tenant_id = $1 AND user_id = $2 AND is_active = true AND expires_at > NOW()`,
		scope, userID,
	).Scan(&result.Total)
	if err != nil {
		return nil, fmt.Errorf("session: count: %w", err)
	}

	return result, nil
}

func (p *PGStore) End(ctx context.Context, scope tenant.ID, sessionID, userID string) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE sessions
		 SET is_active = false,
		     logout_time = LEAST(NOW(), expires_at)
		 WHERE tenant_id = $1 AND session_id = $2 AND user_id = $3 AND is_active = true
		 RETURNING `+sessionColumns,
		scope, sessionID, userID,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: end: %w", err)
	}
	return s, nil
}

func (p *PGStore) EndAllOther(ctx context.Context, scope tenant.ID, userID, currentSessionID string) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions
		 SET is_active = false,
		     logout_time = LEAST(NOW(), expires_at)
		 WHERE tenant_id = $1 AND user_id = $2 AND session_id <> $3 AND is_active = true`,
		scope, userID, currentSessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("session: end all other: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PGStore) EndAllForUser(ctx context.Context, scope tenant.ID, userID string) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions
		 SET is_active = false,
		     logout_time = LEAST(NOW(), expires_at)
		 WHERE tenant_id = $1 AND user_id = $2 AND is_active = true`,
		scope, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("session: end all: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PGStore) ActiveIDs(ctx context.Context, scope tenant.ID, userID string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT session_id FROM sessions
		 WHERE tenant_id = $1 AND user_id = $2 AND is_active = true`,
		scope, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("session: active ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("session: active ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PGStore) Touch(ctx context.Context, scope tenant.ID, sessionID string, at time.Time) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE sessions
		 SET last_seen = $3
		 WHERE tenant_id = $1 AND session_id = $2 AND is_active = true
		 RETURNING `+sessionColumns,
		scope, sessionID, at,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: touch: %w", err)
	}
	return s, nil
}

func (p *PGStore) GetCurrent(ctx context.Context, scope tenant.ID, sessionID, userID string) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE tenant_id = $1 AND session_id = $2 AND user_id = $3 AND is_active = true`,
		scope, sessionID, userID,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: get current: %w", err)
	}
	return s, nil
}
