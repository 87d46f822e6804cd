package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NotesTagger/internal/domain"
)

func newTestRepository(t *testing.T) *RecordRepository {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRecordRepository(db, "inbox")
	base := time.Date(2025, 9, 21, 10, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func TestQueryRecordsByScopeInOrder(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	seed := []domain.Record{
		{ID: "b", Scope: "inbox", Title: "second", Labels: []string{"x", "y"}},
		{ID: "a", Scope: "inbox", Title: "first-created-later"},
		{ID: "c", Scope: "archive", Title: "archived", Body: "body text"},
	}
	for _, rec := range seed {
		if err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert %s: %v", rec.ID, err)
		}
	}

	inbox, err := repo.QueryRecords(ctx, "inbox")
	if err != nil {
		t.Fatalf("QueryRecords error: %v", err)
	}
	if len(inbox) != 2 || inbox[0].ID != "b" || inbox[1].ID != "a" {
		t.Fatalf("unexpected inbox order: %+v", inbox)
	}
	if strings.Join(inbox[0].Labels, ",") != "x,y" || len(inbox[1].Labels) != 0 {
		t.Fatalf("unexpected labels: %+v", inbox)
	}

	archive, _ := repo.QueryRecords(ctx, "archive")
	if len(archive) != 1 || archive[0].Body != "body text" {
		t.Fatalf("unexpected archive: %+v", archive)
	}

	missing, err := repo.QueryRecords(ctx, "untagged")
	if err != nil || len(missing) != 0 {
		t.Fatalf("unknown scope should be empty, got %v %v", missing, err)
	}
}

func TestPersistIsIdempotentAndAdditive(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, domain.Record{ID: "a", Scope: "inbox", Labels: []string{"old"}}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	rec := domain.Record{ID: "a", Scope: "inbox", Labels: []string{"old", "alpha", "beta"}}
	for i := 0; i < 2; i++ {
		if err := repo.Persist(ctx, rec); err != nil {
			t.Fatalf("Persist #%d error: %v", i, err)
		}
	}

	// A record view that lacks "old" must not remove it.
	if err := repo.Persist(ctx, domain.Record{ID: "a", Labels: []string{"gamma"}}); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	got, _ := repo.QueryRecords(ctx, "inbox")
	if strings.Join(got[0].Labels, ",") != "old,alpha,beta,gamma" {
		t.Fatalf("unexpected labels: %v", got[0].Labels)
	}
}

func TestPersistUnknownRecord(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	if err := repo.Persist(context.Background(), domain.Record{ID: "ghost", Labels: []string{"x"}}); err == nil {
		t.Fatalf("expected error for unknown record")
	}
}

func TestCreateRecord(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	content := "Auto-tagging processing log\nTotal processed: 2"
	rec, err := repo.CreateRecord(ctx, content, []string{"auto-tagging", "processing-log", "auto-tagging"})
	if err != nil {
		t.Fatalf("CreateRecord error: %v", err)
	}
	if rec.ID == "" || rec.Title != "Auto-tagging processing log" || rec.Scope != "inbox" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, _ := repo.QueryRecords(ctx, "inbox")
	if len(got) != 1 || got[0].Body != content {
		t.Fatalf("record not stored: %+v", got)
	}
	if strings.Join(got[0].Labels, ",") != "auto-tagging,processing-log" {
		t.Fatalf("unexpected labels: %v", got[0].Labels)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "notes.db")
	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer db.Close()

	if isPostgres(path) {
		t.Fatalf("file path detected as postgres")
	}
	if !isPostgres("postgres://user@localhost/notes") || !isPostgres("postgresql://localhost/notes") {
		t.Fatalf("postgres DSN not detected")
	}
}
