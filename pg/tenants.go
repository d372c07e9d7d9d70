package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepage/authkit/tenant"
)

// TenantDirectory is the Postgres-backed tenant.Directory.
type TenantDirectory struct {
	pool *pgxpool.Pool
}

// NewTenantDirectory wraps a pgx pool as a tenant.Directory.
func NewTenantDirectory(pool *pgxpool.Pool) *TenantDirectory {
	return &TenantDirectory{pool: pool}
}

func scanTenant(row pgx.Row) (*tenant.Record, error) {
	var rec tenant.Record
	if err := row.Scan(&rec.ID, &rec.Domain, &rec.Subdomain, &rec.CustomDomain); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *TenantDirectory) ByDomain(ctx context.Context, domain string) (*tenant.Record, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT id, domain, subdomain, custom_domain FROM tenants WHERE domain = $1`,
		domain,
	)
	rec, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrUnknownDomain
		}
		return nil, fmt.Errorf("pg: tenant by domain: %w", err)
	}
	return rec, nil
}

func (d *TenantDirectory) BySubdomain(ctx context.Context, subdomain string) (*tenant.Record, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT id, domain, subdomain, custom_domain FROM tenants WHERE subdomain = $1`,
		subdomain,
	)
	rec, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrUnknownDomain
		}
		return nil, fmt.Errorf("pg: tenant by subdomain: %w", err)
	}
	return rec, nil
}
