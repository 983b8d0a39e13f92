package schema

import (
	"errors"
	"testing"

	"github.com/luzzle/luzzle/internal/apperr"
)

func TestForType_Known(t *testing.T) {
	s, err := ForType("books")
	if err != nil {
		t.Fatalf("ForType: %v", err)
	}
	if s.Table != "books" {
		t.Errorf("table = %q, want %q", s.Table, "books")
	}
}

func TestForType_Unknown(t *testing.T) {
	_, err := ForType("movies")
	if !errors.Is(err, apperr.ErrUnknownPieceType) {
		t.Errorf("err = %v, want ErrUnknownPieceType", err)
	}
}

func TestValidate_Valid(t *testing.T) {
	s, _ := ForType("books")
	fm := map[string]any{
		"title":     "Dune",
		"author":    "Herbert",
		"favorite":  true,
		"date_read": "2024-03-01",
		"cover":     ".assets/books/abc123/cover.jpg",
		"tags":      []any{"sci-fi", "classics"},
	}
	if errs := s.Validate(fm); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	s, _ := ForType("books")
	errs := s.Validate(map[string]any{"title": "Dune"})
	if len(errs) != 1 || errs[0].Field != "author" {
		t.Errorf("errs = %v, want one error on author", errs)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	s, _ := ForType("books")
	errs := s.Validate(map[string]any{
		"title":     42,
		"author":    "Herbert",
		"date_read": "not a date",
		"cover":     "covers/cover.jpg",
	})
	if len(errs) != 3 {
		t.Fatalf("len(errs) = %d, want 3: %v", len(errs), errs)
	}
}

func TestValidate_UndeclaredField(t *testing.T) {
	s, _ := ForType("texts")
	errs := s.Validate(map[string]any{"title": "Essay", "publisher": "nobody"})
	if len(errs) != 1 || errs[0].Field != "publisher" {
		t.Errorf("errs = %v, want one error on publisher", errs)
	}
}

func TestValidate_AssetExtension(t *testing.T) {
	s, _ := ForType("books")
	errs := s.Validate(map[string]any{
		"title":  "Dune",
		"author": "Herbert",
		"cover":  ".assets/books/abc123/cover.tiff",
	})
	if len(errs) != 1 || errs[0].Field != "cover" {
		t.Errorf("errs = %v, want one error on cover", errs)
	}
}

func TestValidate_AssetShapeOnly(t *testing.T) {
	// The asset rule checks string shape, not file existence.
	s, _ := ForType("books")
	errs := s.Validate(map[string]any{
		"title":  "Dune",
		"author": "Herbert",
		"cover":  ".assets/books/no-such-id/cover.jpg",
	})
	if errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	s, _ := ForType("links")
	fm := map[string]any{"url": "https://example.com", "title": "Example"}
	_ = s.Validate(fm)
	if len(fm) != 2 {
		t.Errorf("input was mutated: %v", fm)
	}
}

func TestParseDate_Layouts(t *testing.T) {
	for _, in := range []string{"2024-03-01", "2024-03-01T12:30:00Z", "January 2, 2006"} {
		if _, err := ParseDate(in); err != nil {
			t.Errorf("ParseDate(%q): %v", in, err)
		}
	}
	if _, err := ParseDate("soonish"); err == nil {
		t.Error("expected error for unparseable date")
	}
}
