package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attempt is the immutable record of one processed submission.
type Attempt struct {
	ID             string           `json:"attempt_id"`
	UserID         string           `json:"user_id"`
	TestID         string           `json:"test_id"`
	Skill          string           `json:"skill"`
	AttemptNumber  int              `json:"attempt_number"`
	FirstAttempt   bool             `json:"is_first_attempt"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	UserEloBefore  int              `json:"user_elo_before"`
	UserEloAfter   int              `json:"user_elo_after"`
	TestEloBefore  int              `json:"test_elo_before"`
	TestEloAfter   int              `json:"test_elo_after"`
	TokensCharged  int              `json:"tokens_charged"`
	FeeExempt      bool             `json:"fee_exempt"`
	IdempotencyKey string           `json:"-"`
	Results        []QuestionResult `json:"question_results"`
	SubmittedAt    int64            `json:"submitted_at"`
}

// DBTX matches *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger is the append-only attempts collection plus the denormalised
// per-user activity counters. Rows are never updated after insert.
type Ledger struct{}

const attemptCols = `id,user_id,test_id,skill,attempt_number,is_first_attempt,score,total_questions,
	user_elo_before,user_elo_after,test_elo_before,test_elo_after,
	tokens_charged,fee_exempt,idempotency_key,results_json,submitted_at`

// FindByKey looks up a previously committed attempt for (user, key).
func (Ledger) FindByKey(ctx context.Context, q DBTX, userID, key string) (Attempt, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE user_id=$1 AND idempotency_key=$2`, userID, key)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, err
	}
	return a, true, nil
}

// Get returns one attempt by id.
func (Ledger) Get(ctx context.Context, q DBTX, id string) (Attempt, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, err
	}
	return a, true, nil
}

// CountAttempts returns how many attempts exist for the triple.
func (Ledger) CountAttempts(ctx context.Context, q DBTX, userID, testID, skill string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts
		WHERE user_id=$1 AND test_id=$2 AND skill=$3`, userID, testID, skill).Scan(&n)
	return n, err
}

// Insert appends one attempt. The unique indexes on
// (user_id,test_id,skill,attempt_number) and (user_id,idempotency_key)
// make this the serialization point for racing submissions.
func (Ledger) Insert(ctx context.Context, q DBTX, a Attempt) error {
	rj, err := json.Marshal(a.Results)
	if err != nil {
		return err
	}
	var key any // NULL keeps keyless attempts out of the partial unique index
	if a.IdempotencyKey != "" {
		key = a.IdempotencyKey
	}
	_, err = q.ExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.UserID, a.TestID, a.Skill, a.AttemptNumber, a.FirstAttempt,
		a.Score, a.TotalQuestions,
		a.UserEloBefore, a.UserEloAfter, a.TestEloBefore, a.TestEloAfter,
		a.TokensCharged, a.FeeExempt, key, string(rj), a.SubmittedAt)
	return err
}

// BumpUserActivity upserts the denormalised counters on users.
func (Ledger) BumpUserActivity(ctx context.Context, q DBTX, userID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO users (id, total_tests_taken, last_activity_at)
		VALUES ($1,1,$2)
		ON CONFLICT (id) DO UPDATE SET
			total_tests_taken=users.total_tests_taken+1,
			last_activity_at=EXCLUDED.last_activity_at`,
		userID, now.Unix())
	return err
}

// ListOpts filters the analytics listing.
type ListOpts struct {
	UserID string
	TestID string
	Skill  string
	Limit  int
	Offset int
}

// List returns attempts newest-first.
func (Ledger) List(ctx context.Context, q DBTX, opts ListOpts) ([]Attempt, error) {
	var where []string
	var args []any
	add := func(cond string, v string) {
		if v != "" {
			args = append(args, v)
			where = append(where, cond+placeholder(len(args)))
		}
	}
	add("user_id=", opts.UserID)
	add("test_id=", opts.TestID)
	add("skill=", opts.Skill)

	query := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at DESC, attempt_number DESC"
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	args = append(args, opts.Limit)
	query += " LIMIT " + placeholder(len(args))
	args = append(args, opts.Offset)
	query += " OFFSET " + placeholder(len(args))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func placeholder(n int) string { return fmt.Sprintf("$%d", n) }

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(s scanner) (Attempt, error) {
	var a Attempt
	var key sql.NullString
	var rj string
	if err := s.Scan(&a.ID, &a.UserID, &a.TestID, &a.Skill, &a.AttemptNumber, &a.FirstAttempt,
		&a.Score, &a.TotalQuestions,
		&a.UserEloBefore, &a.UserEloAfter, &a.TestEloBefore, &a.TestEloAfter,
		&a.TokensCharged, &a.FeeExempt, &key, &rj, &a.SubmittedAt); err != nil {
		return Attempt{}, err
	}
	if key.Valid {
		a.IdempotencyKey = key.String
	}
	if err := json.Unmarshal([]byte(rj), &a.Results); err != nil {
		a.Results = nil
	}
	return a, nil
}
