package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:lingualoop.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/lingualoop?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS tests (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  language TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  difficulty INTEGER NOT NULL DEFAULT 1,
  total_attempts INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  prompt TEXT NOT NULL,
  choices_json TEXT NOT NULL DEFAULT '[]',
  correct_answer TEXT NOT NULL,
  UNIQUE (test_id, position)
);

CREATE TABLE IF NOT EXISTS user_skill_ratings (
  user_id TEXT NOT NULL,
  skill TEXT NOT NULL,
  elo_rating INTEGER NOT NULL CHECK (elo_rating BETWEEN 400 AND 3000),
  volatility REAL NOT NULL CHECK (volatility > 0),
  tests_taken INTEGER NOT NULL DEFAULT 0,
  last_test_at INTEGER,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, skill)
);

CREATE TABLE IF NOT EXISTS test_skill_ratings (
  test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  skill TEXT NOT NULL,
  elo_rating INTEGER NOT NULL CHECK (elo_rating BETWEEN 400 AND 3000),
  volatility REAL NOT NULL CHECK (volatility > 0),
  total_attempts INTEGER NOT NULL DEFAULT 0,
  last_attempt_at INTEGER,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (test_id, skill)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  test_id TEXT NOT NULL REFERENCES tests(id),
  skill TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  is_first_attempt INTEGER NOT NULL,
  score INTEGER NOT NULL,
  total_questions INTEGER NOT NULL,
  user_elo_before INTEGER NOT NULL,
  user_elo_after INTEGER NOT NULL,
  test_elo_before INTEGER NOT NULL,
  test_elo_after INTEGER NOT NULL,
  tokens_charged INTEGER NOT NULL DEFAULT 0,
  fee_exempt INTEGER NOT NULL DEFAULT 0,
  idempotency_key TEXT,
  results_json TEXT NOT NULL,
  submitted_at INTEGER NOT NULL,
  UNIQUE (user_id, test_id, skill, attempt_number)
);

CREATE UNIQUE INDEX IF NOT EXISTS attempts_idem_key
  ON attempts(user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  password_hash TEXT,
  role TEXT NOT NULL DEFAULT 'learner',
  total_tests_taken INTEGER NOT NULL DEFAULT 0,
  last_activity_at INTEGER
);

CREATE TABLE IF NOT EXISTS event_log (
  offset INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., AttemptSubmitted
  key TEXT NOT NULL,                         -- natural key: attemptID
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS tests (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  language TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  difficulty INTEGER NOT NULL DEFAULT 1,
  total_attempts INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  prompt TEXT NOT NULL,
  choices_json TEXT NOT NULL DEFAULT '[]',
  correct_answer TEXT NOT NULL,
  UNIQUE (test_id, position)
);

CREATE TABLE IF NOT EXISTS user_skill_ratings (
  user_id TEXT NOT NULL,
  skill TEXT NOT NULL,
  elo_rating INTEGER NOT NULL CHECK (elo_rating BETWEEN 400 AND 3000),
  volatility DOUBLE PRECISION NOT NULL CHECK (volatility > 0),
  tests_taken INTEGER NOT NULL DEFAULT 0,
  last_test_at BIGINT,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, skill)
);

CREATE TABLE IF NOT EXISTS test_skill_ratings (
  test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  skill TEXT NOT NULL,
  elo_rating INTEGER NOT NULL CHECK (elo_rating BETWEEN 400 AND 3000),
  volatility DOUBLE PRECISION NOT NULL CHECK (volatility > 0),
  total_attempts INTEGER NOT NULL DEFAULT 0,
  last_attempt_at BIGINT,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (test_id, skill)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  test_id TEXT NOT NULL REFERENCES tests(id),
  skill TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  is_first_attempt BOOLEAN NOT NULL,
  score INTEGER NOT NULL,
  total_questions INTEGER NOT NULL,
  user_elo_before INTEGER NOT NULL,
  user_elo_after INTEGER NOT NULL,
  test_elo_before INTEGER NOT NULL,
  test_elo_after INTEGER NOT NULL,
  tokens_charged INTEGER NOT NULL DEFAULT 0,
  fee_exempt BOOLEAN NOT NULL DEFAULT FALSE,
  idempotency_key TEXT,
  results_json TEXT NOT NULL,
  submitted_at BIGINT NOT NULL,
  UNIQUE (user_id, test_id, skill, attempt_number)
);

CREATE UNIQUE INDEX IF NOT EXISTS attempts_idem_key
  ON attempts(user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  password_hash TEXT,
  role TEXT NOT NULL DEFAULT 'learner',
  total_tests_taken INTEGER NOT NULL DEFAULT 0,
  last_activity_at BIGINT
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
