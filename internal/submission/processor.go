package submission

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lingualoop/lingualoop-core/internal/audit"
	"github.com/lingualoop/lingualoop-core/internal/rating"
	"github.com/lingualoop/lingualoop-core/internal/testbank"
)

// Status messages surfaced to the caller.
const (
	MsgFirstAttempt = "First attempt - ELO updated"
	MsgRetake       = "Retake - ELO unchanged"
)

// SubmitRequest is the engine-facing input. Token cost is pre-resolved by
// the billing collaborator; the engine only records it.
type SubmitRequest struct {
	UserID         string
	TestSlug       string
	Skill          string
	Responses      []Response
	IdempotencyKey string
	FeeExempt      bool
	TokenCost      int
}

// RatingChange reports one population's movement for this attempt.
type RatingChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Delta  int `json:"change"`
}

// Result is the structured outcome of a submission.
type Result struct {
	AttemptID      string           `json:"attempt_id"`
	AttemptNumber  int              `json:"attempt_number"`
	FirstAttempt   bool             `json:"is_first_attempt"`
	Cached         bool             `json:"cached"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	Percentage     float64          `json:"percentage"` // 0..1
	UserRating     RatingChange     `json:"user_elo_change"`
	TestRating     RatingChange     `json:"test_elo_change"`
	Results        []QuestionResult `json:"question_results"`
	Message        string           `json:"message"`
}

// Processor runs a submission end to end: dedup, validate, score, resolve
// ratings, and commit everything as one transaction. It holds no mutable
// state of its own; all shared state lives in the database.
type Processor struct {
	db      *sql.DB
	tests   *testbank.SQLStore
	ratings *rating.Store
	ledger  Ledger
	events  *audit.EventRepo
	params  rating.Params
	skills  map[string]bool
	retries int
	now     func() time.Time
}

func NewProcessor(db *sql.DB, tests *testbank.SQLStore, ratings *rating.Store, events *audit.EventRepo, skills []string, retries int) *Processor {
	sk := make(map[string]bool, len(skills))
	for _, s := range skills {
		sk[strings.ToLower(s)] = true
	}
	if retries <= 0 {
		retries = 3
	}
	return &Processor{
		db:      db,
		tests:   tests,
		ratings: ratings,
		events:  events,
		params:  ratings.Params(),
		skills:  sk,
		retries: retries,
		now:     time.Now,
	}
}

// Submit processes one submission. Errors are one of ValidationError,
// NotFoundError, ConflictError or PersistenceError; Retryable tells the
// caller which ones are safe to resubmit.
func (p *Processor) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if req.UserID == "" || req.TestSlug == "" {
		return nil, &ValidationError{Reason: "user and test are required"}
	}
	req.Skill = strings.ToLower(strings.TrimSpace(req.Skill))
	if !p.skills[req.Skill] {
		return nil, &ValidationError{Reason: "unknown skill: " + req.Skill}
	}

	// Received: a known idempotency key short-circuits before any work.
	if req.IdempotencyKey != "" {
		a, ok, err := p.ledger.FindByKey(ctx, p.db, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, &PersistenceError{Op: "idempotency lookup", Err: err}
		}
		if ok {
			return resultFromAttempt(a, true), nil
		}
	}

	test, err := p.tests.GetBySlug(ctx, req.TestSlug)
	if err != nil {
		if errors.Is(err, testbank.ErrNotFound) {
			return nil, &NotFoundError{Resource: "test"}
		}
		return nil, &PersistenceError{Op: "load test", Err: err}
	}
	questions, err := p.tests.Questions(ctx, test.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "load questions", Err: err}
	}

	// Validated + Scored: pure, before any write.
	score, results, err := Validate(questions, req.Responses)
	if err != nil {
		return nil, err
	}

	for try := 0; ; try++ {
		res, err := p.commit(ctx, req, test, score, len(questions), results)
		if err == nil {
			return res, nil
		}
		dup := isUniqueViolation(err)
		if !dup && !isLockContention(err) {
			return nil, err
		}
		// A racing submission beat us to an attempt number or to the
		// idempotency key. The cached read settles the latter.
		if dup && req.IdempotencyKey != "" {
			if a, ok, lerr := p.ledger.FindByKey(ctx, p.db, req.UserID, req.IdempotencyKey); lerr == nil && ok {
				return resultFromAttempt(a, true), nil
			}
		}
		if try+1 >= p.retries {
			return nil, &ConflictError{Reason: "concurrent submission, retry"}
		}
		select {
		case <-ctx.Done():
			return nil, &PersistenceError{Op: "submit", Err: ctx.Err()}
		case <-time.After(time.Duration(10+rand.Intn(40)) * time.Millisecond):
		}
	}
}

// commit is the RatingsResolved → Committed leg, one transaction per call.
// Unique-index violations bubble up for the retry loop to classify.
func (p *Processor) commit(ctx context.Context, req SubmitRequest, test testbank.Test, score, total int, results []QuestionResult) (*Result, error) {
	now := p.now()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, &PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	prior, err := p.ledger.CountAttempts(ctx, tx, req.UserID, test.ID, req.Skill)
	if err != nil {
		return nil, &PersistenceError{Op: "count attempts", Err: err}
	}
	first := prior == 0

	userSnap, err := p.ratings.GetUser(ctx, tx, req.UserID, req.Skill)
	if err != nil {
		return nil, &PersistenceError{Op: "read user rating", Err: err}
	}
	testSnap, err := p.ratings.GetTest(ctx, tx, test.ID, req.Skill)
	if err != nil {
		return nil, &PersistenceError{Op: "read test rating", Err: err}
	}

	userAfter, testAfter := userSnap.Rating, testSnap.Rating
	if first {
		fraction := float64(score) / float64(total)
		userVol := p.params.VolatilityMultiplier(userSnap.Volatility, userSnap.Attempts, userSnap.LastActive, now)
		testVol := p.params.VolatilityMultiplier(testSnap.Volatility, testSnap.Attempts, testSnap.LastActive, now)
		userAfter = p.params.NextRating(userSnap.Rating, testSnap.Rating, fraction, p.params.UserKFactor, userVol)
		testAfter = p.params.NextRating(testSnap.Rating, userSnap.Rating, 1-fraction, p.params.TestKFactor, testVol)

		if err := p.ratings.CommitUser(ctx, tx, req.UserID, req.Skill, userAfter, userSnap.Volatility, now); err != nil {
			return nil, classify(err, "commit user rating")
		}
		if err := p.ratings.CommitTest(ctx, tx, test.ID, req.Skill, testAfter, testSnap.Volatility, now); err != nil {
			return nil, classify(err, "commit test rating")
		}
	}

	tokens := req.TokenCost
	if req.FeeExempt {
		tokens = 0
	}
	attempt := Attempt{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		TestID:         test.ID,
		Skill:          req.Skill,
		AttemptNumber:  prior + 1,
		FirstAttempt:   first,
		Score:          score,
		TotalQuestions: total,
		UserEloBefore:  userSnap.Rating,
		UserEloAfter:   userAfter,
		TestEloBefore:  testSnap.Rating,
		TestEloAfter:   testAfter,
		TokensCharged:  tokens,
		FeeExempt:      req.FeeExempt,
		IdempotencyKey: req.IdempotencyKey,
		Results:        results,
		SubmittedAt:    now.Unix(),
	}
	if err := p.ledger.Insert(ctx, tx, attempt); err != nil {
		return nil, classify(err, "insert attempt")
	}
	if err := p.tests.IncrementAttempts(ctx, tx, test.ID); err != nil {
		return nil, &PersistenceError{Op: "increment test attempts", Err: err}
	}
	if err := p.ledger.BumpUserActivity(ctx, tx, req.UserID, now); err != nil {
		return nil, &PersistenceError{Op: "bump user counters", Err: err}
	}
	if err := p.events.Append(ctx, tx, audit.EventTypeAttemptSubmitted, attempt.ID, attempt); err != nil {
		return nil, &PersistenceError{Op: "append event", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err, "commit")
	}
	return resultFromAttempt(attempt, false), nil
}

func resultFromAttempt(a Attempt, cached bool) *Result {
	msg := MsgRetake
	if a.FirstAttempt {
		msg = MsgFirstAttempt
	}
	var pct float64
	if a.TotalQuestions > 0 {
		pct = float64(a.Score) / float64(a.TotalQuestions)
	}
	return &Result{
		AttemptID:      a.ID,
		AttemptNumber:  a.AttemptNumber,
		FirstAttempt:   a.FirstAttempt,
		Cached:         cached,
		Score:          a.Score,
		TotalQuestions: a.TotalQuestions,
		Percentage:     pct,
		UserRating:     RatingChange{Before: a.UserEloBefore, After: a.UserEloAfter, Delta: a.UserEloAfter - a.UserEloBefore},
		TestRating:     RatingChange{Before: a.TestEloBefore, After: a.TestEloAfter, Delta: a.TestEloAfter - a.TestEloBefore},
		Results:        a.Results,
		Message:        msg,
	}
}

// classify keeps unique violations bare so the retry loop can see them;
// anything else becomes a PersistenceError.
func classify(err error, op string) error {
	if isUniqueViolation(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// modernc sqlite reports constraint failures in the message only.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isLockContention reports driver-level write contention a fresh transaction
// can win: postgres serialization failures and deadlock aborts, sqlite's
// busy/locked states.
func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
