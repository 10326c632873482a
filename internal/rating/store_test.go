package rating_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lingualoop/lingualoop-core/internal/db"
	"github.com/lingualoop/lingualoop-core/internal/rating"
)

func newStoreDB(t *testing.T, name string) (*sql.DB, *rating.Store) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh, rating.NewStore(rating.DefaultParams(), "sqlite")
}

func TestStore_ReadsNeverCreateRows(t *testing.T) {
	dbh, store := newStoreDB(t, "rating_reads")
	ctx := context.Background()

	snap, err := store.GetUser(ctx, dbh, "u1", "listening")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if snap.Rating != 1200 || snap.Volatility != 1.0 || snap.Attempts != 0 {
		t.Fatalf("expected user defaults, got %+v", snap)
	}
	if !snap.LastActive.IsZero() {
		t.Fatalf("fresh user should have zero LastActive, got %v", snap.LastActive)
	}

	tsnap, err := store.GetTest(ctx, dbh, "t1", "listening")
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if tsnap.Rating != 1400 {
		t.Fatalf("expected test default 1400, got %d", tsnap.Rating)
	}

	var n int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM user_skill_ratings`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("a read created %d rows", n)
	}
}

func TestStore_CommitRoundtrip(t *testing.T) {
	dbh, store := newStoreDB(t, "rating_commit")
	ctx := context.Background()
	now := time.Now()

	if err := store.CommitUser(ctx, dbh, "u1", "reading", 1217, 1.0, now); err != nil {
		t.Fatalf("commit: %v", err)
	}
	snap, err := store.GetUser(ctx, dbh, "u1", "reading")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Rating != 1217 || snap.Attempts != 1 {
		t.Fatalf("expected 1217/1 after first commit, got %+v", snap)
	}
	if snap.LastActive.Unix() != now.Unix() {
		t.Fatalf("last activity not stamped: %v", snap.LastActive)
	}

	// A second commit overwrites the rating and bumps the counter by one.
	if err := store.CommitUser(ctx, dbh, "u1", "reading", 1230, 1.0, now.Add(time.Hour)); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	snap, err = store.GetUser(ctx, dbh, "u1", "reading")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Rating != 1230 || snap.Attempts != 2 {
		t.Fatalf("expected 1230/2 after second commit, got %+v", snap)
	}
}

func TestStore_ListUser(t *testing.T) {
	dbh, store := newStoreDB(t, "rating_list")
	ctx := context.Background()
	now := time.Now()

	for _, skill := range []string{"reading", "listening"} {
		if err := store.CommitUser(ctx, dbh, "u1", skill, 1250, 1.0, now); err != nil {
			t.Fatalf("commit %s: %v", skill, err)
		}
	}
	list, err := store.ListUser(ctx, dbh, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 skill rows, got %d", len(list))
	}
	if list[0].Skill != "listening" || list[1].Skill != "reading" {
		t.Fatalf("expected skill-sorted rows, got %s,%s", list[0].Skill, list[1].Skill)
	}
}
