// Package piece defines the piece domain model, path-to-type resolution, and
// the mapping between frontmatter values and database columns.
package piece

import (
	"strings"

	"github.com/luzzle/luzzle/internal/schema"
)

// AssetDir is the directory that holds binary assets referenced from
// frontmatter, laid out as .assets/<type>/<id>/<filename>.
const AssetDir = ".assets"

// Piece is one content item: a markdown file joined with its database row.
type Piece struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Type        string         `json:"type"`
	Note        string         `json:"note"`
	Frontmatter map[string]any `json:"frontmatter"`
	DateAdded   int64          `json:"date_added"`
	DateUpdated *int64         `json:"date_updated"`
}

// IsAsset reports whether a tree-relative path lives under the asset area.
func IsAsset(path string) bool {
	return strings.HasPrefix(path, AssetDir+"/")
}

// Resolve maps a tree-relative file path to its piece type and slug.
//
// A file belongs to a type when its first directory segment equals the type
// name, or when its filename carries a ".<type>." infix (e.g. dune.books.md).
// A path that matches several types resolves to the first match in registry
// order; the registry's declared order is the documented tie-break.
func Resolve(path string) (*schema.Schema, string, bool) {
	if !strings.HasSuffix(path, ".md") || IsAsset(path) {
		return nil, "", false
	}
	for _, s := range schema.Types() {
		if slug, ok := resolveAs(path, s); ok {
			return s, slug, true
		}
	}
	return nil, "", false
}

func resolveAs(path string, s *schema.Schema) (string, bool) {
	matched := false
	rel := path
	if strings.HasPrefix(path, s.Type+"/") {
		matched = true
		rel = strings.TrimPrefix(path, s.Type+"/")
	}
	stem := strings.TrimSuffix(rel, ".md")
	if strings.HasSuffix(stem, "."+s.Type) {
		matched = true
		stem = strings.TrimSuffix(stem, "."+s.Type)
	}
	if !matched || stem == "" {
		return "", false
	}
	return stem, true
}

// FilePath returns the canonical on-disk location for a piece of the given
// type and slug, used when materializing rows back into files.
func FilePath(s *schema.Schema, slug string) string {
	return s.Type + "/" + slug + ".md"
}
