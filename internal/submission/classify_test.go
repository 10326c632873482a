package submission

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pg unique", &pgconn.PgError{Code: "23505"}, true},
		{"pg other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: attempts.user_id, attempts.idempotency_key (2067)"), true},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsLockContention(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite busy", errors.New("SQLITE_BUSY: database is locked (5)"), true},
		{"sqlite table lock", errors.New("database table is locked: attempts (262)"), true},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := isLockContention(tc.err); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
	// Contention stays visible through the processor's own wrapping.
	wrapped := &PersistenceError{Op: "begin", Err: &pgconn.PgError{Code: "40001"}}
	if !isLockContention(wrapped) {
		t.Fatal("wrapped serialization failure not classified as contention")
	}
}
