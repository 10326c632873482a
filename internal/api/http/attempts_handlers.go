package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/lingualoop/lingualoop-core/internal/auth/middleware"
	"github.com/lingualoop/lingualoop-core/internal/rating"
	"github.com/lingualoop/lingualoop-core/internal/rbac"
	"github.com/lingualoop/lingualoop-core/internal/submission"
)

// GET /attempts?test_id=...&skill=...&limit=50&offset=0
// Callers without attempt:view-all are scoped to their own attempts.
func ListAttemptsHandler(db *sql.DB, ledger submission.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := auth.RoleFromContext(r.Context())
		sub := auth.SubjectFromContext(r.Context())

		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !rbac.Has(role, "attempt:view-all") {
			userID = sub
		}

		list, err := ledger.List(r.Context(), db, submission.ListOpts{
			UserID: userID,
			TestID: strings.TrimSpace(r.URL.Query().Get("test_id")),
			Skill:  strings.TrimSpace(r.URL.Query().Get("skill")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(db *sql.DB, ledger submission.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok, err := ledger.Get(r.Context(), db, chi.URLParam(r, "attemptID"))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if !ok {
			http.Error(w, "attempt not found", http.StatusNotFound)
			return
		}
		role := auth.RoleFromContext(r.Context())
		if a.UserID != auth.SubjectFromContext(r.Context()) && !rbac.Has(role, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a)
	}
}

// GET /me/ratings — the caller's per-skill ratings.
func MyRatingsHandler(db *sql.DB, ratings *rating.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		list, err := ratings.ListUser(r.Context(), db, sub)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"user_id": sub, "skill_ratings": list})
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
