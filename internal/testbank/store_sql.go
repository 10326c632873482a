package testbank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lingualoop/lingualoop-core/internal/rating"
)

// ErrNotFound reports a missing or inactive test.
var ErrNotFound = errors.New("test not found")

// SQLStore is the read model for tests and their canonical questions, plus
// the pipeline-facing Put used to install new content.
type SQLStore struct {
	db     *sql.DB
	params rating.Params
	skills []string // skills seeded with a rating row on Put
}

func NewSQLStore(db *sql.DB, params rating.Params, skills []string) *SQLStore {
	return &SQLStore{db: db, params: params, skills: skills}
}

// Put installs a test with its questions and one seed rating row per skill,
// atomically. Question ids and the test id are assigned when absent.
// Reinstalling an existing id updates the metadata and swaps in the new
// question set; accumulated ratings and counters are kept.
func (s *SQLStore) Put(ctx context.Context, t Test, questions []Question) (Test, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Slug == "" {
		t.Slug = t.ID
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	t.IsActive = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Test{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO tests (id,slug,language,topic,title,difficulty,total_attempts,is_active,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			language=EXCLUDED.language, topic=EXCLUDED.topic, title=EXCLUDED.title,
			difficulty=EXCLUDED.difficulty, is_active=EXCLUDED.is_active`,
		t.ID, t.Slug, t.Language, t.Topic, t.Title, t.Difficulty, t.IsActive, t.CreatedAt)
	if err != nil {
		return Test{}, err
	}

	// Reinstall replaces the question set wholesale; rating rows survive.
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id=$1`, t.ID); err != nil {
		return Test{}, err
	}

	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.Position == 0 {
			q.Position = i + 1
		}
		cj, err := json.Marshal(q.Choices)
		if err != nil {
			return Test{}, err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO questions (id,test_id,position,prompt,choices_json,correct_answer)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			q.ID, t.ID, q.Position, q.Prompt, string(cj), q.CorrectAnswer)
		if err != nil {
			return Test{}, err
		}
	}

	now := time.Now().Unix()
	for _, skill := range s.skills {
		_, err = tx.ExecContext(ctx, `INSERT INTO test_skill_ratings
			(test_id, skill, elo_rating, volatility, total_attempts, last_attempt_at, updated_at)
			VALUES ($1,$2,$3,$4,0,NULL,$5)
			ON CONFLICT (test_id, skill) DO NOTHING`,
			t.ID, skill, s.params.DefaultTestRating, s.params.DefaultVolatility, now)
		if err != nil {
			return Test{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Test{}, err
	}
	return t, nil
}

// GetBySlug returns an active test.
func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,slug,language,topic,title,difficulty,total_attempts,is_active,created_at
		FROM tests WHERE slug=$1 AND is_active`, slug)
	var t Test
	if err := row.Scan(&t.ID, &t.Slug, &t.Language, &t.Topic, &t.Title, &t.Difficulty, &t.TotalAttempts, &t.IsActive, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrNotFound
		}
		return Test{}, err
	}
	return t, nil
}

// Questions returns the canonical question set in its stable order.
func (s *SQLStore) Questions(ctx context.Context, testID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,test_id,position,prompt,choices_json,correct_answer
		FROM questions WHERE test_id=$1 ORDER BY position`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var cj string
		if err := rows.Scan(&q.ID, &q.TestID, &q.Position, &q.Prompt, &cj, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cj), &q.Choices); err != nil {
			q.Choices = nil
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// DBTX matches *sql.DB and *sql.Tx; IncrementAttempts runs inside the
// submission transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// IncrementAttempts bumps the test's running attempt counter.
func (s *SQLStore) IncrementAttempts(ctx context.Context, q DBTX, testID string) error {
	res, err := q.ExecContext(ctx, `UPDATE tests SET total_attempts=total_attempts+1 WHERE id=$1`, testID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
