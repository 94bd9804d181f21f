package db

import (
	"context"
	"testing"
	"time"
)

func TestListFiltered(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	resetMessages(t, ctx, db)

	if _, err := InsertMessage(ctx, db, "alice", "one"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := InsertMessage(ctx, db, "bob", "two"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := InsertMessage(ctx, db, "alice", "three"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	all, err := ListFiltered(ctx, db, ExportFilter{})
	if err != nil {
		t.Fatalf("unfiltered: %v", err)
	}
	if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
		t.Errorf("unfiltered = %+v, want all three ascending", all)
	}

	byUser, err := ListFiltered(ctx, db, ExportFilter{Username: "alice"})
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(byUser) != 2 || byUser[0].Text != "one" || byUser[1].Text != "three" {
		t.Errorf("alice's messages = %+v", byUser)
	}

	// A window entirely in the future matches nothing.
	future, err := ListFiltered(ctx, db, ExportFilter{From: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("future window: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("future window = %+v, want empty", future)
	}

	// A window covering now matches everything.
	window, err := ListFiltered(ctx, db, ExportFilter{
		From: time.Now().Add(-time.Hour),
		To:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 3 {
		t.Errorf("window matched %d messages, want 3", len(window))
	}
}
