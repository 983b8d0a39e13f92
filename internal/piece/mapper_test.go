package piece

import (
	"testing"
	"time"

	"github.com/luzzle/luzzle/internal/markdown"
	"github.com/luzzle/luzzle/internal/schema"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func bookDoc(fm map[string]any, body string) *markdown.Document {
	return &markdown.Document{Slug: "dune", Frontmatter: fm, Body: body}
}

func TestInsertable_WritesEveryField(t *testing.T) {
	s, _ := schema.ForType("books")
	doc := bookDoc(map[string]any{
		"title":     "Dune",
		"author":    "Herbert",
		"favorite":  true,
		"date_read": "2024-03-01",
		"tags":      []any{"sci-fi"},
	}, "A classic.")

	row, err := Insertable(doc, s, now)
	if err != nil {
		t.Fatalf("Insertable: %v", err)
	}
	if row["id"] == "" || row["id"] == nil {
		t.Error("expected generated id")
	}
	if row["slug"] != "dune" || row["note"] != "A classic." {
		t.Errorf("slug/note = %v/%v", row["slug"], row["note"])
	}
	if row["date_added"] != now.UnixMilli() || row["date_updated"] != nil {
		t.Errorf("timestamps = %v/%v", row["date_added"], row["date_updated"])
	}
	if row["favorite"] != int64(1) {
		t.Errorf("favorite = %v, want 1", row["favorite"])
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if row["date_read"] != want {
		t.Errorf("date_read = %v, want %d", row["date_read"], want)
	}
	if row["tags"] != `["sci-fi"]` {
		t.Errorf("tags = %v", row["tags"])
	}
	// Absent optionals are still written, as NULL.
	if v, ok := row["cover"]; !ok || v != nil {
		t.Errorf("cover = %v (present=%v), want explicit NULL", v, ok)
	}
}

func TestUpdatable_SparseDiff(t *testing.T) {
	s, _ := schema.ForType("books")
	doc := bookDoc(map[string]any{"title": "Dune", "author": "Frank Herbert"}, "A classic.")
	existing := map[string]any{
		"id": "x", "slug": "dune", "note": "A classic.",
		"title": "Dune", "author": "Herbert",
		"rating": nil, "favorite": nil, "date_read": nil, "cover": nil, "tags": nil,
	}

	changes, err := Updatable(doc, s, existing, false, now)
	if err != nil {
		t.Fatalf("Updatable: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %v, want exactly author + date_updated", changes)
	}
	if changes["author"] != "Frank Herbert" {
		t.Errorf("author = %v", changes["author"])
	}
	if changes["date_updated"] != now.UnixMilli() {
		t.Errorf("date_updated = %v", changes["date_updated"])
	}
}

func TestUpdatable_NoChanges(t *testing.T) {
	s, _ := schema.ForType("links")
	doc := &markdown.Document{
		Slug:        "example",
		Frontmatter: map[string]any{"url": "https://example.com", "title": "Example"},
		Body:        "",
	}
	existing := map[string]any{
		"slug": "example", "note": "",
		"url": "https://example.com", "title": "Example",
		"date_saved": nil, "favorite": nil, "tags": nil,
	}
	changes, err := Updatable(doc, s, existing, false, now)
	if err != nil {
		t.Fatalf("Updatable: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes = %v, want none", changes)
	}
}

func TestUpdatable_ForceIncludesEverything(t *testing.T) {
	s, _ := schema.ForType("links")
	doc := &markdown.Document{
		Slug:        "example",
		Frontmatter: map[string]any{"url": "https://example.com", "title": "Example"},
	}
	existing := map[string]any{
		"slug": "example", "note": "",
		"url": "https://example.com", "title": "Example",
	}
	changes, err := Updatable(doc, s, existing, true, now)
	if err != nil {
		t.Fatalf("Updatable: %v", err)
	}
	// All schema fields + note + slug + date_updated.
	want := len(s.Fields()) + 3
	if len(changes) != want {
		t.Errorf("len(changes) = %d, want %d: %v", len(changes), want, changes)
	}
}

func TestColumnRoundTrip(t *testing.T) {
	s, _ := schema.ForType("books")
	fm := map[string]any{
		"title":     "Dune",
		"author":    "Herbert",
		"favorite":  false,
		"rating":    5,
		"date_read": "2024-03-01",
		"tags":      []any{"sci-fi", "classics"},
		"cover":     ".assets/books/abc/cover.jpg",
	}
	for _, f := range s.Fields() {
		col, err := ToColumn(f, fm[f.Name])
		if err != nil {
			t.Fatalf("ToColumn(%s): %v", f.Name, err)
		}
		back, err := FromColumn(f, col)
		if err != nil {
			t.Fatalf("FromColumn(%s): %v", f.Name, err)
		}
		// Ints widen to int64 on the way back; everything else is loss-free.
		switch f.Name {
		case "rating":
			if back != int64(5) {
				t.Errorf("rating round trip = %v", back)
			}
		case "tags":
			items, ok := back.([]any)
			if !ok || len(items) != 2 || items[0] != "sci-fi" {
				t.Errorf("tags round trip = %v", back)
			}
		default:
			got, want := back, fm[f.Name]
			if got != want {
				t.Errorf("%s round trip = %v, want %v", f.Name, got, want)
			}
		}
	}
}

func TestFromStored(t *testing.T) {
	s, _ := schema.ForType("books")
	updated := now.UnixMilli()
	row := map[string]any{
		"id": "abc", "slug": "dune", "note": "text",
		"date_added": int64(1000), "date_updated": updated,
		"title": "Dune", "author": "Herbert", "favorite": int64(1),
		"rating": nil, "date_read": nil, "cover": nil, "tags": nil,
	}
	p, err := FromStored(s, row)
	if err != nil {
		t.Fatalf("FromStored: %v", err)
	}
	if p.ID != "abc" || p.Slug != "dune" || p.DateAdded != 1000 {
		t.Errorf("piece = %+v", p)
	}
	if p.DateUpdated == nil || *p.DateUpdated != updated {
		t.Errorf("date_updated = %v", p.DateUpdated)
	}
	if p.Frontmatter["favorite"] != true {
		t.Errorf("favorite = %v", p.Frontmatter["favorite"])
	}
	if _, ok := p.Frontmatter["rating"]; ok {
		t.Error("NULL column must not surface in frontmatter")
	}
}
