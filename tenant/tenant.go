// Package tenant resolves inbound hosts to tenant identifiers and carries
// the resolved tenant through request contexts. Every storage call in the
// auth core takes a tenant.ID scope so cross-tenant reads cannot be
// expressed by accident.
package tenant

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ID is the partitioning key for all tenant-scoped state.
type ID string

// ErrNotResolved is returned when no resolution rule matches the host.
var ErrNotResolved = errors.New("tenant not resolved")

// ErrUnknownDomain is returned by Directory lookups that miss.
var ErrUnknownDomain = errors.New("unknown tenant domain")

// Record describes one provisioned tenant.
type Record struct {
	ID           ID
	Domain       string
	Subdomain    string
	CustomDomain bool
}

// Directory is the read-only tenant/domain lookup collaborator.
type Directory interface {
	ByDomain(ctx context.Context, domain string) (*Record, error)
	BySubdomain(ctx context.Context, subdomain string) (*Record, error)
}

// Resolver maps a request host (plus an optional X-Tenant-ID override) to a
// tenant. Resolution order, first match wins:
//
//  1. loopback/dev host: use the override header or the configured dev tenant
//  2. exact custom-domain match
//  3. platform-subdomain match (host ends with "."+BaseDomain)
//  4. explicit override header (administrative bypass)
type Resolver struct {
	dir        Directory
	baseDomain string
	devTenant  ID
}

// NewResolver builds a Resolver. baseDomain is the platform apex
// (e.g. "stagepage.io"); devTenant may be empty.
func NewResolver(dir Directory, baseDomain string, devTenant ID) *Resolver {
	return &Resolver{
		dir:        dir,
		baseDomain: strings.ToLower(strings.TrimSpace(baseDomain)),
		devTenant:  devTenant,
	}
}

// Resolve maps host and the X-Tenant-ID override to a tenant ID.
func (r *Resolver) Resolve(ctx context.Context, host, override string) (ID, error) {
	host = normalizeHost(host)
	override = strings.TrimSpace(override)

	if isLoopback(host) {
		if override != "" {
			return ID(override), nil
		}
		if r.devTenant != "" {
			return r.devTenant, nil
		}
		return "", ErrNotResolved
	}

	if host != "" {
		rec, err := r.dir.ByDomain(ctx, host)
		if err == nil {
			return rec.ID, nil
		}
		if !errors.Is(err, ErrUnknownDomain) {
			return "", err
		}
	}

	if r.baseDomain != "" && strings.HasSuffix(host, "."+r.baseDomain) {
		sub := strings.TrimSuffix(host, "."+r.baseDomain)
		if sub != "" && !strings.Contains(sub, ".") {
			rec, err := r.dir.BySubdomain(ctx, sub)
			if err == nil {
				return rec.ID, nil
			}
			if !errors.Is(err, ErrUnknownDomain) {
				return "", err
			}
		}
	}

	if override != "" {
		return ID(override), nil
	}

	return "", ErrNotResolved
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}
	if strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

type tenantContextKey struct{}

// NewContext returns ctx carrying the resolved tenant.
func NewContext(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, id)
}

// FromContext extracts the tenant attached by the resolver middleware.
func FromContext(ctx context.Context) (ID, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(tenantContextKey{}).(ID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
