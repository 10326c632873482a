package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	auth "github.com/lingualoop/lingualoop-core/internal/auth/middleware"
)

func TestHas(t *testing.T) {
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"learner", "attempt:submit", true},
		{"learner", "test:create", false},
		{"learner", "attempt:view-all", false},
		{"pipeline", "test:create", true},
		{"pipeline", "attempt:submit", false},
		{"admin", "attempt:view-all", true},
		{"", "test:view", false},
		{"ghost-role", "test:view", false},
	}
	for _, tc := range cases {
		if got := Has(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Has(%q,%q)=%v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, role string) int {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/", nil)
	if role != "" {
		req = req.WithContext(auth.WithRole(req.Context(), role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequire(t *testing.T) {
	if code := serve(t, Require("test:create"), "pipeline"); code != http.StatusOK {
		t.Fatalf("pipeline should create tests, got %d", code)
	}
	if code := serve(t, Require("test:create"), "learner"); code != http.StatusForbidden {
		t.Fatalf("learner must not create tests, got %d", code)
	}
	if code := serve(t, Require("test:view"), ""); code != http.StatusForbidden {
		t.Fatalf("missing role must be forbidden, got %d", code)
	}
}

func TestRequireAny(t *testing.T) {
	mw := RequireAny("attempt:view-own", "attempt:view-all")
	if code := serve(t, mw, "learner"); code != http.StatusOK {
		t.Fatalf("learner can view own attempts, got %d", code)
	}
	if code := serve(t, mw, "pipeline"); code != http.StatusForbidden {
		t.Fatalf("pipeline has no attempt access, got %d", code)
	}
}
