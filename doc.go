// Package authkit is the authentication and session core of the StagePage
// platform: multi-tenant login with account lockout, optional email-code
// two-factor verification, JWT access/refresh token issuance with
// refresh-token rotation and reuse detection, per-device session tracking,
// and deduplicated security alerting.
//
// The Engine is the orchestration layer. It composes a UserStore (credential
// records), a session.Store (persistent login sessions), Redis-backed
// refresh-token and two-factor challenge caches, and a Mailer collaborator.
// Build one with the Builder:
//
//	engine, err := authkit.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserStore(users).
//		WithSessionStore(sessions).
//		WithMailer(mailer).
//		Build()
//
// All engine operations read the caller's tenant from the request context
// (see package tenant) and the client IP / User-Agent via WithClientIP and
// WithUserAgent.
package authkit
