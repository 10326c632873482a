package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lingualoop/lingualoop-core/internal/rating"
	"github.com/lingualoop/lingualoop-core/internal/testbank"
)

type putTestReq struct {
	testbank.Test
	Questions []testbank.Question `json:"questions"`
}

// POST /tests — content pipeline installs a test with its questions.
func PutTestHandler(store *testbank.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req putTestReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Language == "" || len(req.Questions) == 0 {
			http.Error(w, "language and questions required", http.StatusBadRequest)
			return
		}
		t, err := store.Put(r.Context(), req.Test, req.Questions)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(t)
	}
}

// GET /tests/{slug} — test with answer-stripped questions.
func GetTestHandler(store *testbank.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			if errors.Is(err, testbank.ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		qs, err := store.Questions(r.Context(), t.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"test":      t,
			"questions": testbank.StripAnswers(qs),
		})
	}
}

// GET /tests/{slug}/ratings — per-skill difficulty ratings for a test.
func GetTestRatingsHandler(store *testbank.SQLStore, ratings *rating.Store, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			if errors.Is(err, testbank.ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		list, err := ratings.ListTest(r.Context(), db, t.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"test_id": t.ID, "skill_ratings": list})
	}
}
