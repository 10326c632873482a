package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/lingualoop/lingualoop-core/internal/auth/middleware"
	"github.com/lingualoop/lingualoop-core/internal/submission"
)

type submitBody struct {
	Skill          string                `json:"skill"`
	Responses      []submission.Response `json:"responses"`
	IdempotencyKey string                `json:"idempotency_key,omitempty"`
	FeeExempt      bool                  `json:"fee_exempt"`
	TokenCost      int                   `json:"token_cost"`
}

// POST /tests/{slug}/submit
func SubmitHandler(proc *submission.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body submitBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			key = body.IdempotencyKey
		}
		res, err := proc.Submit(r.Context(), submission.SubmitRequest{
			UserID:         userID,
			TestSlug:       chi.URLParam(r, "slug"),
			Skill:          body.Skill,
			Responses:      body.Responses,
			IdempotencyKey: key,
			FeeExempt:      body.FeeExempt,
			TokenCost:      body.TokenCost,
		})
		if err != nil {
			writeSubmissionError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}
}

// writeSubmissionError maps the engine's taxonomy onto status codes so the
// UI can tell "fix your request" (400/404) from "retry" (409/503).
func writeSubmissionError(w http.ResponseWriter, err error) {
	var ve *submission.ValidationError
	var nf *submission.NotFoundError
	var ce *submission.ConflictError
	var pe *submission.PersistenceError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusBadRequest)
	case errors.As(err, &nf):
		http.Error(w, nf.Error(), http.StatusNotFound)
	case errors.As(err, &ce):
		http.Error(w, ce.Error(), http.StatusConflict)
	case errors.As(err, &pe):
		http.Error(w, pe.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
