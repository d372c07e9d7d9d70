// Package config loads service configuration from environment variables and
// an optional config file via viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the authd service configuration.
type Config struct {
	Env        string `mapstructure:"env"`
	ListenAddr string `mapstructure:"listen_addr"`
	BaseDomain string `mapstructure:"base_domain"`
	DevTenant  string `mapstructure:"dev_tenant"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`

	JWTSecret       string        `mapstructure:"jwt_secret"`
	CSRFSecret      string        `mapstructure:"csrf_secret"`
	CSRFTTL         time.Duration `mapstructure:"csrf_ttl"`
	CSRFExemptPaths string        `mapstructure:"csrf_exempt_paths"`

	SMTPAddr string `mapstructure:"smtp_addr"`
	SMTPFrom string `mapstructure:"smtp_from"`
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// CSRFExempt returns the comma-separated exempt-path list as a slice.
func (c Config) CSRFExempt() []string {
	var paths []string
	for _, p := range strings.Split(c.CSRFExemptPaths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Load reads configuration with the AUTHD_ env prefix. A config file named
// authd.yaml is read from the working directory when present.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("authd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("base_domain", "stagepage.io")
	v.SetDefault("dev_tenant", "")
	v.SetDefault("postgres_dsn", "postgres://localhost:5432/authd?sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("csrf_secret", "")
	v.SetDefault("csrf_ttl", 4*time.Hour)
	v.SetDefault("csrf_exempt_paths", "/api/auth/refresh")
	v.SetDefault("smtp_addr", "localhost:1025")
	v.SetDefault("smtp_from", "no-reply@stagepage.io")

	v.SetConfigName("authd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if len(cfg.JWTSecret) < 32 {
		return Config{}, errors.New("config: jwt_secret (env AUTHD_JWT_SECRET or authd.yaml) must be at least 32 bytes")
	}
	if len(cfg.CSRFSecret) < 32 {
		return Config{}, errors.New("config: csrf_secret (env AUTHD_CSRF_SECRET or authd.yaml) must be at least 32 bytes")
	}
	return cfg, nil
}
