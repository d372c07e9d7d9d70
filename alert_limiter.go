package authkit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stagepage/authkit/tenant"
)

const (
	alertDedupKeyPrefix   = "sad"
	alertCounterKeyPrefix = "sac"
	alertCounterWindow    = time.Hour
)

// securityAlertLimiter decides whether a security alert may be sent.
// Duplicate suppression is an atomic SETNX, so concurrent detections of the
// same incident yield exactly one mail; a per-user hourly counter caps the
// total volume regardless of incident variety.
type securityAlertLimiter struct {
	redis       redis.UniversalClient
	dedupWindow time.Duration
	maxPerHour  int
}

func newSecurityAlertLimiter(redisClient redis.UniversalClient, cfg AlertConfig) *securityAlertLimiter {
	return &securityAlertLimiter{
		redis:       redisClient,
		dedupWindow: cfg.DedupWindow,
		maxPerHour:  cfg.MaxPerHour,
	}
}

// dedupKey identifies one incident: same user, same alert type, same source
// address. The IP is digested so raw addresses never become key material.
func (l *securityAlertLimiter) dedupKey(scope tenant.ID, userID, alertType, ip string) string {
	ipDigest := sha256.Sum256([]byte(ip))
	incident := sha256.Sum256([]byte(userID + "|" + alertType + "|" + hex.EncodeToString(ipDigest[:])))
	return alertDedupKeyPrefix + ":" + string(scope) + ":" + hex.EncodeToString(incident[:])
}

func (l *securityAlertLimiter) counterKey(scope tenant.ID, userID string) string {
	return alertCounterKeyPrefix + ":" + string(scope) + ":" + userID
}

// Allow reports whether an alert for this incident should be sent now.
// Backend failures suppress the alert rather than failing the caller's
// operation.
func (l *securityAlertLimiter) Allow(ctx context.Context, scope tenant.ID, userID, alertType, ip string) (bool, error) {
	fresh, err := l.redis.SetNX(ctx, l.dedupKey(scope, userID, alertType, ip), 1, l.dedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !fresh {
		return false, nil
	}

	counter := l.counterKey(scope, userID)
	count, err := l.redis.Incr(ctx, counter).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, counter, alertCounterWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return count <= int64(l.maxPerHour), nil
}
