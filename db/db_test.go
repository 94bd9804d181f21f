package db

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres test")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func resetMessages(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE chat_messages RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Running again must be a no-op.
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestInsertAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	resetMessages(t, ctx, db)

	first, err := InsertMessage(ctx, db, "alice", "hello")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID <= 0 || first.CreatedAt.IsZero() {
		t.Errorf("insert returned incomplete row: %+v", first)
	}
	second, err := InsertMessage(ctx, db, "bob", "hi")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("ids not increasing: %d then %d", first.ID, second.ID)
	}

	recent, err := ListRecent(ctx, db, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != first.ID || recent[1].ID != second.ID {
		t.Errorf("recent = %+v, want both rows oldest first", recent)
	}

	// Limit trims from the old end, keeping the newest rows.
	recent, err = ListRecent(ctx, db, 1)
	if err != nil {
		t.Fatalf("list recent limit 1: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != second.ID {
		t.Errorf("recent limit 1 = %+v, want only newest", recent)
	}

	after, err := ListAfter(ctx, db, first.ID, 10)
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(after) != 1 || after[0].ID != second.ID {
		t.Errorf("after %d = %+v, want only second row", first.ID, after)
	}

	after, err = ListAfter(ctx, db, second.ID, 10)
	if err != nil {
		t.Fatalf("list after newest: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("after newest = %+v, want empty", after)
	}
}

func TestRetentionCleanupByCount(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	resetMessages(t, ctx, db)

	for i := 0; i < 5; i++ {
		if _, err := InsertMessage(ctx, db, "u", "m"); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	policy := RetentionPolicy{KeepLastNMessages: 2, Interval: time.Hour}
	if err := runRetentionCleanup(ctx, db, policy); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	rows, err := ListRecent(ctx, db, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows after cleanup = %d, want 2", len(rows))
	}
	if rows[0].ID != 4 || rows[1].ID != 5 {
		t.Errorf("surviving ids = %d,%d, want 4,5", rows[0].ID, rows[1].ID)
	}
}

func TestRetentionDryRunDeletesNothing(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	resetMessages(t, ctx, db)

	for i := 0; i < 3; i++ {
		if _, err := InsertMessage(ctx, db, "u", "m"); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	policy := RetentionPolicy{KeepLastNMessages: 1, DryRun: true, Interval: time.Hour}
	if err := runRetentionCleanup(ctx, db, policy); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	rows, err := ListRecent(ctx, db, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("dry run deleted rows: %d left, want 3", len(rows))
	}
}
