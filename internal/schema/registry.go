package schema

import (
	"fmt"

	"github.com/luzzle/luzzle/internal/apperr"
)

// CommonColumns are schema-described-but-database-only fields. They are never
// read from frontmatter and piece type schemas must not redeclare them.
var CommonColumns = []string{"id", "slug", "note", "date_added", "date_updated"}

var imageExtensions = []string{"jpg", "png", "svg", "avif", "webp"}

// registry holds the closed set of piece types in declared order. The order is
// load-bearing: a file whose path matches more than one type resolves to the
// first match.
var registry = []*Schema{
	{
		Type:  "books",
		Table: "books",
		Required: []Field{
			{Name: "title", Kind: String},
			{Name: "author", Kind: String},
		},
		Optional: []Field{
			{Name: "rating", Kind: Int},
			{Name: "favorite", Kind: Bool},
			{Name: "date_read", Kind: Date},
			{Name: "cover", Kind: Asset, Extensions: imageExtensions},
			{Name: "tags", Kind: StringList},
		},
	},
	{
		Type:  "links",
		Table: "links",
		Required: []Field{
			{Name: "url", Kind: String},
			{Name: "title", Kind: String},
		},
		Optional: []Field{
			{Name: "date_saved", Kind: Date},
			{Name: "favorite", Kind: Bool},
			{Name: "tags", Kind: StringList},
		},
	},
	{
		Type:  "texts",
		Table: "texts",
		Required: []Field{
			{Name: "title", Kind: String},
		},
		Optional: []Field{
			{Name: "date_published", Kind: Date},
			{Name: "draft", Kind: Bool},
			{Name: "cover", Kind: Asset, Extensions: imageExtensions},
			{Name: "tags", Kind: StringList},
		},
	},
}

func init() {
	// A schema field shadowing a common column would make the field mapper
	// ambiguous; fail fast at process start.
	for _, s := range registry {
		for _, f := range s.Fields() {
			for _, col := range CommonColumns {
				if f.Name == col {
					panic(fmt.Sprintf("schema: type %s declares reserved field %q", s.Type, col))
				}
			}
		}
	}
}

// Types returns all registered piece type schemas in declared order.
func Types() []*Schema {
	return registry
}

// ForType returns the schema for a known piece type.
func ForType(name string) (*Schema, error) {
	for _, s := range registry {
		if s.Type == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("schema: %q: %w", name, apperr.ErrUnknownPieceType)
}
