package authkit

import (
	"errors"
	"time"

	"github.com/stagepage/authkit/jwt"
	"github.com/stagepage/authkit/password"
)

// LockoutConfig controls the failed-login counter and lock duration.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// TwoFactorConfig controls email-code challenges.
type TwoFactorConfig struct {
	CodeDigits int
	CodeTTL    time.Duration
}

// AlertConfig controls security-alert deduplication.
type AlertConfig struct {
	DedupWindow time.Duration
	MaxPerHour  int
}

// Config aggregates engine settings. Zero sub-values are filled from
// DefaultConfig by the Builder.
type Config struct {
	JWT       jwt.Config
	Password  password.Config
	Lockout   LockoutConfig
	TwoFactor TwoFactorConfig
	Alert     AlertConfig
}

// DefaultConfig returns the production defaults: 1h access / 7d refresh
// tokens, five failed attempts locking for fifteen minutes, six-digit
// two-factor codes valid ten minutes, alerts deduplicated over five minutes
// with a ceiling of ten per user per hour.
func DefaultConfig() Config {
	return Config{
		JWT: jwt.Config{
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			VerifyTTL:     24 * time.Hour,
			SigningMethod: jwt.MethodHS256,
			Leeway:        30 * time.Second,
		},
		Password: password.Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			CodeDigits: 6,
			CodeTTL:    10 * time.Minute,
		},
		Alert: AlertConfig{
			DedupWindow: 5 * time.Minute,
			MaxPerHour:  10,
		},
	}
}

// Validate rejects configurations the engine cannot run with. Signing
// material is validated separately by jwt.NewManager.
func (c Config) Validate() error {
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("config: lockout max attempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("config: lockout duration must be positive")
	}
	if c.TwoFactor.CodeDigits < 6 || c.TwoFactor.CodeDigits > 10 {
		return errors.New("config: two-factor code digits must be 6..10")
	}
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("config: two-factor code TTL must be positive")
	}
	if c.Alert.DedupWindow <= 0 {
		return errors.New("config: alert dedup window must be positive")
	}
	if c.Alert.MaxPerHour < 1 {
		return errors.New("config: alert hourly ceiling must be >= 1")
	}
	return nil
}
