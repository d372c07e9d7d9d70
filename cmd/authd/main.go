// Command authd runs the auth service: tenant-resolved login, token refresh
// with rotation, session management, and CSRF-protected JSON endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit"
	"github.com/stagepage/authkit/config"
	"github.com/stagepage/authkit/csrf"
	"github.com/stagepage/authkit/httpapi"
	"github.com/stagepage/authkit/mailer"
	"github.com/stagepage/authkit/pg"
	"github.com/stagepage/authkit/session"
	"github.com/stagepage/authkit/tenant"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("authd exited")
	}
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	var mail authkit.Mailer
	if cfg.Production() {
		mail = mailer.NewSMTP(cfg.SMTPAddr, cfg.SMTPFrom)
	} else {
		mail = &mailer.Log{Logger: log}
	}

	engineCfg := authkit.DefaultConfig()
	engineCfg.JWT.PrivateKey = []byte(cfg.JWTSecret)
	engineCfg.JWT.Issuer = "authd"

	engine, err := authkit.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(pg.NewUserStore(pool)).
		WithSessionStore(session.NewPGStore(pool)).
		WithMailer(mail).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}

	guard, err := csrf.New([]byte(cfg.CSRFSecret), cfg.CSRFTTL, cfg.CSRFExempt())
	if err != nil {
		return err
	}

	resolver := tenant.NewResolver(pg.NewTenantDirectory(pool), cfg.BaseDomain, tenant.ID(cfg.DevTenant))

	server := httpapi.NewServer(httpapi.Options{
		Engine:     engine,
		Resolver:   resolver,
		CSRF:       guard,
		Logger:     log,
		BaseDomain: cfg.BaseDomain,
		Production: cfg.Production(),
		Health: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("authd listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
