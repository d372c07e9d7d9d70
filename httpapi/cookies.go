package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/stagepage/authkit"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// cookieDomain picks the cookie scope for the request host. Platform
// subdomains share a cookie across "."+BaseDomain so the marketing site and
// the builder see the same login; custom domains get host-only cookies.
func (s *Server) cookieDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if s.baseDomain != "" && (host == s.baseDomain || strings.HasSuffix(host, "."+s.baseDomain)) {
		return "." + s.baseDomain
	}
	return ""
}

func (s *Server) sameSite() http.SameSite {
	if s.production {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (s *Server) setAuthCookies(w http.ResponseWriter, r *http.Request, result *authkit.LoginResult) {
	domain := s.cookieDomain(r.Host)
	cfg := s.engine.Configuration()

	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    result.AccessToken,
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(cfg.JWT.AccessTTL / time.Second),
		HttpOnly: true,
		Secure:   s.production,
		SameSite: s.sameSite(),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    result.RefreshToken,
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(cfg.JWT.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   s.production,
		SameSite: s.sameSite(),
	})
}

func (s *Server) clearAuthCookies(w http.ResponseWriter, r *http.Request) {
	domain := s.cookieDomain(r.Host)
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.production,
			SameSite: s.sameSite(),
		})
	}
}
