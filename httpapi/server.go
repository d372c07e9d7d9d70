// Package httpapi exposes the auth core over HTTP: JSON handlers, cookie
// management, tenant resolution, CSRF protection, and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit"
	"github.com/stagepage/authkit/csrf"
	"github.com/stagepage/authkit/tenant"
)

// Options configures a Server.
type Options struct {
	Engine     *authkit.Engine
	Resolver   *tenant.Resolver
	CSRF       *csrf.Guard
	Logger     *logrus.Logger
	Registry   *prometheus.Registry
	BaseDomain string
	Production bool
	// Health pings the backing stores; nil means always healthy.
	Health func(ctx context.Context) error
}

// Server holds the handler dependencies. Build the router with Router.
type Server struct {
	engine     *authkit.Engine
	resolver   *tenant.Resolver
	csrf       *csrf.Guard
	log        *logrus.Logger
	metrics    *metrics
	registry   *prometheus.Registry
	baseDomain string
	production bool
	health     func(ctx context.Context) error
}

// NewServer wires a Server from opts.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Server{
		engine:     opts.Engine,
		resolver:   opts.Resolver,
		csrf:       opts.CSRF,
		log:        log,
		metrics:    newMetrics(registry),
		registry:   registry,
		baseDomain: opts.BaseDomain,
		production: opts.Production,
		health:     opts.Health,
	}
}

// Router builds the full route table with the middleware chain applied.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe, clientMeta)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(tenant.Middleware(s.resolver), s.csrf.Middleware)

	api.HandleFunc("/csrf-token", s.handleCSRFToken).Methods(http.MethodGet)

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify-email", s.handleVerifyEmail).Methods(http.MethodPost)
	api.HandleFunc("/2fa/verify-code", s.handleTwoFactorVerify).Methods(http.MethodPost)
	api.HandleFunc("/2fa/resend-code", s.handleTwoFactorResend).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireAuth)
	authed.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/2fa/enable", s.handleTwoFactorEnable).Methods(http.MethodPost)
	authed.HandleFunc("/2fa/disable", s.handleTwoFactorDisable).Methods(http.MethodPost)
	authed.HandleFunc("/user/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/user/change-password", s.handleChangePassword).Methods(http.MethodPut)
	authed.HandleFunc("/user/sessions", s.handleSessions).Methods(http.MethodGet)
	authed.HandleFunc("/user/sessions", s.handleEndOtherSessions).Methods(http.MethodDelete)
	authed.HandleFunc("/user/sessions/{sessionId}", s.handleEndSession).Methods(http.MethodDelete)

	return r
}
