package authkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlertLimiter(t *testing.T) (*securityAlertLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := newSecurityAlertLimiter(rdb, AlertConfig{
		DedupWindow: 5 * time.Minute,
		MaxPerHour:  10,
	})
	return limiter, mr
}

func TestAlertDedupExactlyOncePerWindow(t *testing.T) {
	limiter, _ := newTestAlertLimiter(t)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, testTenant, "user-1", AlertTokenReuse, "203.0.113.10")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("first alert should pass")
	}

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, testTenant, "user-1", AlertTokenReuse, "203.0.113.10")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if allowed {
			t.Fatalf("duplicate %d passed inside the window", i)
		}
	}
}

func TestAlertDistinctIncidentsPass(t *testing.T) {
	limiter, _ := newTestAlertLimiter(t)
	ctx := context.Background()

	cases := []struct {
		user, alertType, ip string
	}{
		{"user-1", AlertTokenReuse, "203.0.113.10"},
		{"user-1", AlertDeviceMismatch, "203.0.113.10"}, // same user, other type
		{"user-1", AlertTokenReuse, "198.51.100.7"},     // same type, other source
		{"user-2", AlertTokenReuse, "203.0.113.10"},     // other user
	}
	for _, tc := range cases {
		allowed, err := limiter.Allow(ctx, testTenant, tc.user, tc.alertType, tc.ip)
		if err != nil {
			t.Fatalf("allow(%+v): %v", tc, err)
		}
		if !allowed {
			t.Fatalf("distinct incident suppressed: %+v", tc)
		}
	}
}

func TestAlertAllowedAgainAfterWindow(t *testing.T) {
	limiter, mr := newTestAlertLimiter(t)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, testTenant, "user-1", AlertTokenReuse, "203.0.113.10"); !allowed {
		t.Fatal("first alert should pass")
	}

	mr.FastForward(6 * time.Minute)

	allowed, err := limiter.Allow(ctx, testTenant, "user-1", AlertTokenReuse, "203.0.113.10")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("alert should pass again after the window lapses")
	}
}

func TestAlertHourlyCeiling(t *testing.T) {
	limiter, _ := newTestAlertLimiter(t)
	ctx := context.Background()

	sent := 0
	for i := 0; i < 15; i++ {
		// distinct source per attempt so dedup never suppresses
		ip := fmt.Sprintf("203.0.113.%d", i+1)
		allowed, err := limiter.Allow(ctx, testTenant, "user-1", AlertTokenReuse, ip)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if allowed {
			sent++
		}
	}
	if sent != 10 {
		t.Fatalf("sent = %d, want ceiling of 10", sent)
	}
}

func TestAlertCeilingIsPerUser(t *testing.T) {
	limiter, _ := newTestAlertLimiter(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		ip := fmt.Sprintf("203.0.113.%d", i+1)
		_, _ = limiter.Allow(ctx, testTenant, "user-1", AlertTokenReuse, ip)
	}

	allowed, err := limiter.Allow(ctx, testTenant, "user-2", AlertTokenReuse, "203.0.113.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("another user's alert must not be capped by user-1's ceiling")
	}
}
