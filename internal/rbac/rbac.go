package rbac

import (
	"net/http"

	auth "github.com/lingualoop/lingualoop-core/internal/auth/middleware"
)

// Role→permission rules. Learners submit and read their own records; the
// content pipeline installs tests; admins see everything.
var rules = map[string]map[string]bool{
	"learner": {
		"test:view":        true,
		"attempt:submit":   true,
		"attempt:view-own": true,
		"rating:view-own":  true,
	},
	"pipeline": {
		"test:create": true,
		"test:view":   true,
	},
	"admin": {
		"test:create":      true,
		"test:view":        true,
		"attempt:submit":   true,
		"attempt:view-own": true,
		"attempt:view-all": true,
		"rating:view-own":  true,
	},
}

func Has(role, perm string) bool { return rules[role][perm] }

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := auth.RoleFromContext(r.Context())
			if role == "" || !Has(role, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := auth.RoleFromContext(r.Context())
			for _, p := range perms {
				if Has(role, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
