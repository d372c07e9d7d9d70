// Package csrf implements stateless cross-site request forgery protection.
// Tokens are short-lived HMAC-signed JWTs, so verification needs no server
// state and any replica can validate a token minted by another.
package csrf

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token transport locations, checked in order.
const (
	HeaderName = "X-CSRF-Token"
	FieldName  = "csrf_token"
)

var (
	// ErrMissingToken is returned when no token is present in any location.
	ErrMissingToken = errors.New("csrf: token missing")
	// ErrInvalidToken is returned for a bad signature or an expired token.
	ErrInvalidToken = errors.New("csrf: token invalid")
)

const tokenClass = "csrf"

type claims struct {
	Class string `json:"cls"`
	jwt.RegisteredClaims
}

// Guard issues and verifies CSRF tokens and wraps handlers with
// verification.
type Guard struct {
	secret []byte
	ttl    time.Duration
	exempt map[string]struct{}
}

// New builds a Guard. secret must be at least 32 bytes; exemptPaths lists
// exact request paths that skip verification (webhooks, token fetch).
func New(secret []byte, ttl time.Duration, exemptPaths []string) (*Guard, error) {
	if len(secret) < 32 {
		return nil, errors.New("csrf: secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return &Guard{secret: secret, ttl: ttl, exempt: exempt}, nil
}

// Issue mints a fresh token.
func (g *Guard) Issue() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Class: tokenClass,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(g.secret)
}

// Verify checks signature, expiry, and class.
func (g *Guard) Verify(tokenStr string) error {
	if tokenStr == "" {
		return ErrMissingToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &claims{}, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		return ErrInvalidToken
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Class != tokenClass {
		return ErrInvalidToken
	}
	return nil
}

// FromRequest extracts the token: header first, then form body, then query
// string.
func FromRequest(r *http.Request) string {
	if token := r.Header.Get(HeaderName); token != "" {
		return token
	}
	if r.Body != nil && formContentType(r) {
		if token := r.PostFormValue(FieldName); token != "" {
			return token
		}
	}
	return r.URL.Query().Get(FieldName)
}

// Middleware verifies mutating requests. Safe methods (GET, HEAD, OPTIONS)
// and exempt paths pass through untouched.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := g.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		if err := g.Verify(FromRequest(r)); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			if errors.Is(err, ErrMissingToken) {
				_, _ = w.Write([]byte(`{"success":false,"error":{"message":"CSRF token missing"}}`))
			} else {
				_, _ = w.Write([]byte(`{"success":false,"error":{"message":"CSRF token invalid"}}`))
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func formContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
