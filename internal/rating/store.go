package rating

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx. Callers hand the store the
// submission transaction so every rating read/write shares its boundary.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Snapshot is one participant's current standing in a skill.
type Snapshot struct {
	Rating     int
	Volatility float64
	Attempts   int
	LastActive time.Time // zero when the participant has never played
}

// Store reads and writes the two rating populations. Reads never create
// rows: a missing row yields the platform default so a rolled-back
// submission leaves no trace. Commits are single upsert statements that
// bump the row's attempt counter by exactly one, so concurrent writers for
// the same key cannot lose updates.
type Store struct {
	params Params
	driver string // "sqlite" or "postgres"
}

func NewStore(params Params, driver string) *Store {
	return &Store{params: params, driver: driver}
}

func (s *Store) Params() Params { return s.params }

// GetUser returns the user's rating row for a skill, or defaults when none
// exists. On postgres the row is locked for the rest of the transaction.
func (s *Store) GetUser(ctx context.Context, q DBTX, userID, skill string) (Snapshot, error) {
	query := `SELECT elo_rating, volatility, tests_taken, last_test_at
		FROM user_skill_ratings WHERE user_id=$1 AND skill=$2`
	if s.driver == "postgres" {
		query += " FOR UPDATE"
	}
	snap, err := s.scan(q.QueryRowContext(ctx, query, userID, skill))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{Rating: s.params.DefaultUserRating, Volatility: s.params.DefaultVolatility}, nil
	}
	return snap, err
}

// GetTest is GetUser's counterpart for the test population, with the
// harder default rating.
func (s *Store) GetTest(ctx context.Context, q DBTX, testID, skill string) (Snapshot, error) {
	query := `SELECT elo_rating, volatility, total_attempts, last_attempt_at
		FROM test_skill_ratings WHERE test_id=$1 AND skill=$2`
	if s.driver == "postgres" {
		query += " FOR UPDATE"
	}
	snap, err := s.scan(q.QueryRowContext(ctx, query, testID, skill))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{Rating: s.params.DefaultTestRating, Volatility: s.params.DefaultVolatility}, nil
	}
	return snap, err
}

func (s *Store) scan(row *sql.Row) (Snapshot, error) {
	var snap Snapshot
	var last sql.NullInt64
	if err := row.Scan(&snap.Rating, &snap.Volatility, &snap.Attempts, &last); err != nil {
		return Snapshot{}, err
	}
	if last.Valid {
		snap.LastActive = time.Unix(last.Int64, 0)
	}
	return snap, nil
}

// CommitUser upserts the user's row: rating overwritten, tests_taken +1,
// last activity stamped. One statement, so the increment cannot be lost.
func (s *Store) CommitUser(ctx context.Context, q DBTX, userID, skill string, newRating int, volatility float64, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO user_skill_ratings
		(user_id, skill, elo_rating, volatility, tests_taken, last_test_at, updated_at)
		VALUES ($1,$2,$3,$4,1,$5,$5)
		ON CONFLICT (user_id, skill) DO UPDATE SET
			elo_rating=EXCLUDED.elo_rating,
			tests_taken=user_skill_ratings.tests_taken+1,
			last_test_at=EXCLUDED.last_test_at,
			updated_at=EXCLUDED.updated_at`,
		userID, skill, newRating, volatility, now.Unix())
	return err
}

// CommitTest upserts the test's row the same way.
func (s *Store) CommitTest(ctx context.Context, q DBTX, testID, skill string, newRating int, volatility float64, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO test_skill_ratings
		(test_id, skill, elo_rating, volatility, total_attempts, last_attempt_at, updated_at)
		VALUES ($1,$2,$3,$4,1,$5,$5)
		ON CONFLICT (test_id, skill) DO UPDATE SET
			elo_rating=EXCLUDED.elo_rating,
			total_attempts=test_skill_ratings.total_attempts+1,
			last_attempt_at=EXCLUDED.last_attempt_at,
			updated_at=EXCLUDED.updated_at`,
		testID, skill, newRating, volatility, now.Unix())
	return err
}

// ListUser returns every skill row a user holds, for the profile surface.
func (s *Store) ListUser(ctx context.Context, q queryer, userID string) ([]SkillRating, error) {
	rows, err := q.QueryContext(ctx, `SELECT skill, elo_rating, volatility, tests_taken, last_test_at
		FROM user_skill_ratings WHERE user_id=$1 ORDER BY skill`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListTest returns every skill row a test holds.
func (s *Store) ListTest(ctx context.Context, q queryer, testID string) ([]SkillRating, error) {
	rows, err := q.QueryContext(ctx, `SELECT skill, elo_rating, volatility, total_attempts, last_attempt_at
		FROM test_skill_ratings WHERE test_id=$1 ORDER BY skill`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SkillRating is the list-view row for rating surfaces.
type SkillRating struct {
	Skill      string  `json:"skill"`
	Rating     int     `json:"elo_rating"`
	Volatility float64 `json:"volatility"`
	Attempts   int     `json:"attempts"`
	LastActive int64   `json:"last_active,omitempty"`
}

func collect(rows *sql.Rows) ([]SkillRating, error) {
	out := []SkillRating{}
	for rows.Next() {
		var r SkillRating
		var last sql.NullInt64
		if err := rows.Scan(&r.Skill, &r.Rating, &r.Volatility, &r.Attempts, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			r.LastActive = last.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
