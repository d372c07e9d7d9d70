package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit"
)

type identity struct {
	UserID    string
	SessionID string
}

type identityContextKey struct{}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(identity)
	return id, ok
}

// clientMeta attaches the caller's IP and User-Agent to the request context
// for the engine's device binding and alert deduplication.
func clientMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authkit.WithClientIP(r.Context(), clientIP(r))
		ctx = authkit.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireAuth verifies the access token from the Authorization header or the
// access_token cookie and attaches the caller's identity to the context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(accessCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := s.engine.ParseAccessToken(token)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity{
			UserID:    claims.UID,
			SessionID: claims.SID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// observe logs each request and records its metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		elapsed := time.Since(start)
		s.metrics.observe(route, r.Method, rec.status, elapsed)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"route":   route,
			"status":  rec.status,
			"elapsed": elapsed.String(),
			"ip":      clientIP(r),
		}).Info("request")
	})
}
