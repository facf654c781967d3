package auth

import (
	"fmt"
	"net/http"

	"github.com/kubarr/kubarr/internal/apperrors"
)

// RequireAuth rejects requests that have no authenticated user at all.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			apperrors.Write(w, apperrors.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission returns middleware that rejects requests whose user
// does not hold perm. Admins always pass, per HasPermission.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := FromContext(r.Context())
			if user == nil {
				apperrors.Write(w, apperrors.Unauthorized("authentication required"))
				return
			}
			if !user.HasPermission(perm) {
				apperrors.Write(w, apperrors.Forbidden(fmt.Sprintf("Permission denied: %s required", perm)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAppAccess returns middleware that rejects requests whose user
// cannot reach appName, used ahead of the reverse-proxy handler. appName
// is resolved per-request via the supplied function since it's usually a
// path parameter rather than known at route-registration time.
func RequireAppAccess(appName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := FromContext(r.Context())
			if user == nil {
				apperrors.Write(w, apperrors.Unauthorized("authentication required"))
				return
			}
			if name := appName(r); !user.HasAppAccess(name) {
				apperrors.Write(w, apperrors.Forbidden(fmt.Sprintf("No access to app: %s", name)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
