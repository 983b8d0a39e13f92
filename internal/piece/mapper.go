package piece

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luzzle/luzzle/internal/markdown"
	"github.com/luzzle/luzzle/internal/schema"
)

// NewID generates a stable piece identifier (UUID v7). Ids are assigned once
// at insert time and never reassigned.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Insertable builds a complete row payload for a brand-new piece: a fresh id,
// slug and note copied verbatim, date_added set, date_updated null, and every
// schema field written (absent optionals as NULL).
func Insertable(doc *markdown.Document, s *schema.Schema, now time.Time) (map[string]any, error) {
	row := map[string]any{
		"id":           NewID(),
		"slug":         doc.Slug,
		"note":         doc.Body,
		"date_added":   now.UnixMilli(),
		"date_updated": nil,
	}
	for _, f := range s.Fields() {
		v, err := ToColumn(f, doc.Frontmatter[f.Name])
		if err != nil {
			return nil, err
		}
		row[f.Name] = v
	}
	return row, nil
}

// Updatable builds a sparse update payload against an existing row: only
// fields whose converted value differs are included (all of them when force is
// set), plus date_updated whenever the payload is non-empty. An empty result
// means the row is already current.
func Updatable(doc *markdown.Document, s *schema.Schema, existing map[string]any, force bool, now time.Time) (map[string]any, error) {
	changes := map[string]any{}
	for _, f := range s.Fields() {
		v, err := ToColumn(f, doc.Frontmatter[f.Name])
		if err != nil {
			return nil, err
		}
		if force || !columnEqual(v, existing[f.Name]) {
			changes[f.Name] = v
		}
	}
	if force || !columnEqual(doc.Body, existing["note"]) {
		changes["note"] = doc.Body
	}
	if force || !columnEqual(doc.Slug, existing["slug"]) {
		changes["slug"] = doc.Slug
	}
	if len(changes) > 0 {
		changes["date_updated"] = now.UnixMilli()
	}
	return changes, nil
}

// ToColumn converts a frontmatter-shaped value to its database representation:
// bool → 0/1, date string → epoch millis, string list → JSON, absent → NULL.
func ToColumn(f schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case schema.String, schema.Asset:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected string, got %T", f.Name, v)
		}
		return s, nil
	case schema.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected bool, got %T", f.Name, v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case schema.Int:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
		return nil, fmt.Errorf("piece: field %s: expected integer, got %T", f.Name, v)
	case schema.Date:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected date string, got %T", f.Name, v)
		}
		t, err := schema.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("piece: field %s: %w", f.Name, err)
		}
		return t.UnixMilli(), nil
	case schema.StringList:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected list, got %T", f.Name, v)
		}
		out, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("piece: field %s: %w", f.Name, err)
		}
		return string(out), nil
	}
	return nil, fmt.Errorf("piece: field %s: unhandled kind %s", f.Name, f.Kind)
}

// FromColumn converts a database value back to its frontmatter shape. It is
// the inverse of ToColumn, used when materializing rows as markdown.
func FromColumn(f schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case schema.String, schema.Asset:
		return v, nil
	case schema.Bool:
		n, ok := asInt64(v)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected 0/1, got %T", f.Name, v)
		}
		return n != 0, nil
	case schema.Int:
		n, ok := asInt64(v)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected integer, got %T", f.Name, v)
		}
		return n, nil
	case schema.Date:
		n, ok := asInt64(v)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected epoch millis, got %T", f.Name, v)
		}
		t := time.UnixMilli(n).UTC()
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02"), nil
		}
		return t.Format(time.RFC3339), nil
	case schema.StringList:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("piece: field %s: expected JSON text, got %T", f.Name, v)
		}
		var items []any
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, fmt.Errorf("piece: field %s: %w", f.Name, err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("piece: field %s: unhandled kind %s", f.Name, f.Kind)
}

// FromStored builds a Piece from a raw database row.
func FromStored(s *schema.Schema, row map[string]any) (*Piece, error) {
	fm := map[string]any{}
	for _, f := range s.Fields() {
		v, err := FromColumn(f, row[f.Name])
		if err != nil {
			return nil, err
		}
		if v != nil {
			fm[f.Name] = v
		}
	}
	p := &Piece{
		Type:        s.Type,
		Frontmatter: fm,
	}
	if id, ok := row["id"].(string); ok {
		p.ID = id
	}
	if slug, ok := row["slug"].(string); ok {
		p.Slug = slug
	}
	if note, ok := row["note"].(string); ok {
		p.Note = note
	}
	if added, ok := asInt64(row["date_added"]); ok {
		p.DateAdded = added
	}
	if updated, ok := asInt64(row["date_updated"]); ok {
		p.DateUpdated = &updated
	}
	return p, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func columnEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := asInt64(a); ok {
		bn, ok := asInt64(b)
		return ok && an == bn
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return a == b
}
