package tenant

import (
	"encoding/json"
	"net/http"
)

// HeaderTenantID is the administrative/dev override header.
const HeaderTenantID = "X-Tenant-ID"

// Middleware resolves the tenant for every request and rejects requests
// whose host maps to no tenant before any handler executes.
func Middleware(r *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id, err := r.Resolve(req.Context(), req.Host, req.Header.Get(HeaderTenantID))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   map[string]string{"message": "Tenant not resolved"},
				})
				return
			}
			next.ServeHTTP(w, req.WithContext(NewContext(req.Context(), id)))
		})
	}
}
