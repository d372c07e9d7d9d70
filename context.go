package authkit

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records
// it on sessions and refresh-token records and uses it for device-mismatch
// detection and alert deduplication.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used alongside
// the client IP to bind refresh tokens to the issuing device.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}
