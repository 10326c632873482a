package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/lingualoop/lingualoop-core/internal/api/http"
	"github.com/lingualoop/lingualoop-core/internal/audit"
	auth "github.com/lingualoop/lingualoop-core/internal/auth/middleware"
	"github.com/lingualoop/lingualoop-core/internal/config"
	"github.com/lingualoop/lingualoop-core/internal/db"
	"github.com/lingualoop/lingualoop-core/internal/rating"
	"github.com/lingualoop/lingualoop-core/internal/rbac"
	"github.com/lingualoop/lingualoop-core/internal/submission"
	"github.com/lingualoop/lingualoop-core/internal/testbank"
)

// Skill domains every test is rated in.
var skills = []string{"listening", "reading", "dictation"}

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	tests := testbank.NewSQLStore(dbh, cfg.Rating, skills)
	ratings := rating.NewStore(cfg.Rating, cfg.DBDriver)
	events := audit.NewEventRepo(cfg.SiteID)
	proc := submission.NewProcessor(dbh, tests, ratings, events, skills, cfg.SubmitRetries)
	var ledger submission.Ledger

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, dbh, cfg.AdminUser, cfg.AdminPassHash)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Content pipeline: install tests
		pr.With(rbac.Require("test:create")).
			Post("/tests", api.PutTestHandler(tests))

		pr.With(rbac.Require("test:view")).
			Get("/tests/{slug}", api.GetTestHandler(tests))
		pr.With(rbac.Require("test:view")).
			Get("/tests/{slug}/ratings", api.GetTestRatingsHandler(tests, ratings, dbh))

		// Learner flow
		pr.With(rbac.Require("attempt:submit")).
			Post("/tests/{slug}/submit", api.SubmitHandler(proc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(dbh, ledger))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(dbh, ledger))
		pr.With(rbac.Require("rating:view-own")).
			Get("/me/ratings", api.MyRatingsHandler(dbh, ratings))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
