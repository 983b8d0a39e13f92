package piece

import "testing"

func TestResolve_DirectoryConvention(t *testing.T) {
	s, slug, ok := Resolve("books/dune.md")
	if !ok || s.Type != "books" || slug != "dune" {
		t.Errorf("Resolve = (%v, %q, %v)", s, slug, ok)
	}
}

func TestResolve_NestedSlugKeepsSubdirs(t *testing.T) {
	_, slug, ok := Resolve("books/sci-fi/dune.md")
	if !ok || slug != "sci-fi/dune" {
		t.Errorf("slug = %q, want sci-fi/dune", slug)
	}
}

func TestResolve_InfixConvention(t *testing.T) {
	s, slug, ok := Resolve("dune.books.md")
	if !ok || s.Type != "books" || slug != "dune" {
		t.Errorf("Resolve = (%v, %q, %v)", s, slug, ok)
	}
}

func TestResolve_InfixInsideTypeDir(t *testing.T) {
	_, slug, ok := Resolve("books/dune.books.md")
	if !ok || slug != "dune" {
		t.Errorf("slug = %q, want dune", slug)
	}
}

func TestResolve_AmbiguousUsesRegistryOrder(t *testing.T) {
	// Directory says links, infix says texts; books < links < texts in
	// registry order, so links wins.
	s, _, ok := Resolve("links/essay.texts.md")
	if !ok || s.Type != "links" {
		t.Errorf("type = %v, want links", s)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	for _, p := range []string{
		"README.md",
		"notes/misc.md",
		"books/cover.jpg",
		".assets/books/id1/cover.md",
	} {
		if _, _, ok := Resolve(p); ok {
			t.Errorf("Resolve(%q) matched, want no match", p)
		}
	}
}

func TestIsAsset(t *testing.T) {
	if !IsAsset(".assets/books/id1/cover.jpg") {
		t.Error("expected asset path to match")
	}
	if IsAsset("books/dune.md") {
		t.Error("piece path must not match")
	}
}
