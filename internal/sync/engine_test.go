package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/storage"
	"github.com/luzzle/luzzle/internal/testutil"
)

func testEngine(t *testing.T) (*Engine, storage.Provider) {
	t.Helper()
	database := testutil.TestDB(t)
	_, store := testutil.TestTree(t)
	return NewEngine(database, store, nil, testutil.Logger()), store
}

func mustRun(t *testing.T, e *Engine, opts Options) *Report {
	t.Helper()
	report, err := e.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

const duneMD = "---\ntitle: Dune\nauthor: Herbert\n---\nA desert planet.\n"

func TestRun_InsertsNewPiece(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("my-book.books.md", []byte(duneMD))

	report := mustRun(t, e, Options{})
	if report.Inserted != 1 || report.Mutations() != 1 {
		t.Fatalf("report = %+v, want 1 insert", report)
	}

	books, _ := schema.ForType("books")
	row, err := e.db.GetPiece(books, "my-book")
	if err != nil {
		t.Fatalf("GetPiece: %v", err)
	}
	if row["id"] == nil || row["id"] == "" {
		t.Error("expected generated id")
	}
	if row["date_added"] == nil || row["date_updated"] != nil {
		t.Errorf("timestamps = %v/%v", row["date_added"], row["date_updated"])
	}
	if row["author"] != "Herbert" {
		t.Errorf("author = %v", row["author"])
	}
}

func TestRun_Idempotent(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md", []byte(duneMD))
	_ = store.Write("links/example.md", []byte("---\nurl: https://example.com\ntitle: Example\n---\n"))

	mustRun(t, e, Options{})
	second := mustRun(t, e, Options{})
	if second.Mutations() != 0 {
		t.Errorf("second run mutated: %+v", second)
	}
	if second.Unchanged != 2 {
		t.Errorf("unchanged = %d, want 2", second.Unchanged)
	}
}

func TestRun_SparseUpdate(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md", []byte(duneMD))
	mustRun(t, e, Options{})

	books, _ := schema.ForType("books")
	before, _ := e.db.GetPiece(books, "dune")

	_ = store.Write("books/dune.md",
		[]byte("---\ntitle: Dune\nauthor: Frank Herbert\n---\nA desert planet.\n"))
	report := mustRun(t, e, Options{})
	if report.Updated != 1 || report.Inserted != 0 || report.Deleted != 0 {
		t.Fatalf("report = %+v, want exactly 1 update", report)
	}

	after, _ := e.db.GetPiece(books, "dune")
	if after["author"] != "Frank Herbert" {
		t.Errorf("author = %v", after["author"])
	}
	if after["id"] != before["id"] || after["date_added"] != before["date_added"] {
		t.Error("id/date_added must never change on update")
	}
	if after["date_updated"] == nil {
		t.Error("date_updated must be set on update")
	}
}

func TestRun_EditWithIdenticalMtimeDetected(t *testing.T) {
	// An edit landing so fast that the file's mtime never moves must still be
	// picked up: the decision is made on content, not on timestamps.
	database := testutil.TestDB(t)
	dir, store := testutil.TestTree(t)
	e := NewEngine(database, store, nil, testutil.Logger())

	full := filepath.Join(dir, "books", "dune.md")
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_ = store.Write("books/dune.md", []byte(duneMD))
	if err := os.Chtimes(full, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	mustRun(t, e, Options{})

	_ = store.Write("books/dune.md",
		[]byte("---\ntitle: Dune\nauthor: Frank Herbert\n---\nA desert planet.\n"))
	if err := os.Chtimes(full, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	report := mustRun(t, e, Options{})
	if report.Updated != 1 {
		t.Fatalf("report = %+v, want 1 update despite unchanged mtime", report)
	}

	books, _ := schema.ForType("books")
	row, _ := e.db.GetPiece(books, "dune")
	if row["author"] != "Frank Herbert" {
		t.Errorf("author = %v, edit was lost", row["author"])
	}
}

func TestRun_TouchedButIdenticalIsUnchanged(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md", []byte(duneMD))
	mustRun(t, e, Options{})

	// Rewriting the same bytes bumps the mtime but not the content.
	_ = store.Write("books/dune.md", []byte(duneMD))
	report := mustRun(t, e, Options{})
	if report.Mutations() != 0 || report.Unchanged != 1 {
		t.Errorf("report = %+v, want 1 unchanged and no mutations", report)
	}
}

func TestRun_OrphanRowPruned(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/keep.md", []byte(duneMD))
	_ = store.Write("books/gone.md", []byte(duneMD))
	mustRun(t, e, Options{})

	_ = store.Delete("books/gone.md")
	report := mustRun(t, e, Options{})
	if report.Deleted != 1 {
		t.Fatalf("report = %+v, want 1 delete", report)
	}

	books, _ := schema.ForType("books")
	if _, err := e.db.GetPiece(books, "gone"); err == nil {
		t.Error("deleted file's row still present")
	}
	if _, err := e.db.GetPiece(books, "keep"); err != nil {
		t.Errorf("surviving row was removed: %v", err)
	}
}

func TestRun_ValidationIsolation(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/a.md", []byte(duneMD))
	_ = store.Write("books/b.md", []byte("---\ntitle: 42\n---\nbroken\n"))
	_ = store.Write("books/c.md", []byte(duneMD))

	report := mustRun(t, e, Options{})
	if report.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", report.Inserted)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path != "books/b.md" {
		t.Errorf("failures = %+v, want exactly books/b.md", report.Failures)
	}
}

func TestRun_ValidationFailureKeepsRow(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md", []byte(duneMD))
	mustRun(t, e, Options{})

	// The file turns invalid; its last-known-good row must survive.
	_ = store.Write("books/dune.md", []byte("---\ntitle: Dune\n---\nauthor went missing\n"))
	report := mustRun(t, e, Options{})
	if len(report.Failures) != 1 {
		t.Fatalf("failures = %+v, want 1", report.Failures)
	}
	if report.Deleted != 0 {
		t.Errorf("deleted = %d, a failing piece must not be pruned", report.Deleted)
	}

	books, _ := schema.ForType("books")
	row, err := e.db.GetPiece(books, "dune")
	if err != nil {
		t.Fatalf("row was pruned: %v", err)
	}
	if row["author"] != "Herbert" {
		t.Errorf("author = %v, want last-known-good value", row["author"])
	}
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md", []byte(duneMD))

	report := mustRun(t, e, Options{DryRun: true})
	if report.Inserted != 1 {
		t.Errorf("dry run should still report decisions: %+v", report)
	}
	books, _ := schema.ForType("books")
	if _, err := e.db.GetPiece(books, "dune"); err == nil {
		t.Error("dry run inserted a row")
	}
}

func TestRun_ForceRewritesUnchanged(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md", []byte(duneMD))
	mustRun(t, e, Options{})

	report := mustRun(t, e, Options{Force: true})
	if report.Updated != 1 {
		t.Errorf("report = %+v, want forced update", report)
	}
}

func TestRun_AssetPrune(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("books/dune.md",
		[]byte("---\ntitle: Dune\nauthor: Herbert\ncover: .assets/books/id1/cover.jpg\n---\n"))
	_ = store.Write(".assets/books/id1/cover.jpg", []byte("jpeg"))
	_ = store.Write(".assets/books/id1/cover.w400.webp", []byte("variant"))
	_ = store.Write(".assets/books/id2/orphan.png", []byte("png"))

	report := mustRun(t, e, Options{Prune: true})
	if report.PrunedAssets != 1 {
		t.Fatalf("pruned = %d, want 1: %+v", report.PrunedAssets, report)
	}
	if ok, _ := store.Exists(".assets/books/id1/cover.jpg"); !ok {
		t.Error("referenced asset was pruned")
	}
	if ok, _ := store.Exists(".assets/books/id1/cover.w400.webp"); !ok {
		t.Error("variant of referenced asset was pruned")
	}
	if ok, _ := store.Exists(".assets/books/id2/orphan.png"); ok {
		t.Error("orphan asset survived")
	}
}

func TestRun_AssetPruneAfterRowPrune(t *testing.T) {
	// A piece deleted in the same run must not keep its assets alive.
	e, store := testEngine(t)
	_ = store.Write("books/dune.md",
		[]byte("---\ntitle: Dune\nauthor: Herbert\ncover: .assets/books/id1/cover.jpg\n---\n"))
	_ = store.Write(".assets/books/id1/cover.jpg", []byte("jpeg"))
	mustRun(t, e, Options{})

	_ = store.Delete("books/dune.md")
	report := mustRun(t, e, Options{Prune: true})
	if report.Deleted != 1 || report.PrunedAssets != 1 {
		t.Errorf("report = %+v, want row and asset both pruned", report)
	}
}

func TestRun_UnknownFilesIgnored(t *testing.T) {
	e, store := testEngine(t)
	_ = store.Write("README.md", []byte("# readme"))
	_ = store.Write("notes.txt", []byte("scratch"))

	report := mustRun(t, e, Options{})
	if report.Mutations() != 0 || len(report.Failures) != 0 {
		t.Errorf("report = %+v, want nothing", report)
	}
}
