// Package schema defines the closed set of piece types and the frontmatter
// validation rules for each.
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/luzzle/luzzle/internal/apperr"
)

// Kind is the semantic kind of a frontmatter field. Each kind carries its own
// validation rule and its own database column representation.
type Kind int

const (
	String Kind = iota
	Bool
	Int
	// Date accepts a human-readable date string; stored as epoch milliseconds.
	Date
	// Asset accepts a ".assets/<segment>/..." path, optionally restricted to a
	// set of file extensions. The rule checks string shape only, never whether
	// the file exists on disk.
	Asset
	// StringList accepts a YAML sequence of strings; stored as JSON text.
	StringList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Date:
		return "date"
	case Asset:
		return "asset"
	case StringList:
		return "string list"
	default:
		return "unknown"
	}
}

// Field describes one frontmatter field of a piece type.
type Field struct {
	Name string
	Kind Kind
	// Extensions restricts Asset values to these file extensions when non-empty.
	Extensions []string
}

// Schema binds a piece type name to its database table and field set.
type Schema struct {
	Type     string
	Table    string
	Required []Field
	Optional []Field
}

// Fields returns required then optional fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var assetPathRe = regexp.MustCompile(`^\.assets/[^/]+(/[^/]+)+$`)

// dateLayouts are tried in order when parsing Date fields.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"2 January 2006",
}

// ParseDate parses a frontmatter date string into a time.Time.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}

// Validate checks fm against the schema and returns the full list of field
// errors, or nil when valid. The input mapping is never mutated.
func (s *Schema) Validate(fm map[string]any) []apperr.FieldError {
	var errs []apperr.FieldError

	for _, f := range s.Required {
		v, ok := fm[f.Name]
		if !ok || v == nil {
			errs = append(errs, apperr.FieldError{Field: f.Name, Message: "required field is missing"})
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			errs = append(errs, apperr.FieldError{Field: f.Name, Message: msg})
		}
	}

	for _, f := range s.Optional {
		v, ok := fm[f.Name]
		if !ok || v == nil {
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			errs = append(errs, apperr.FieldError{Field: f.Name, Message: msg})
		}
	}

	for name := range fm {
		if _, ok := s.Field(name); !ok {
			errs = append(errs, apperr.FieldError{Field: name, Message: "field is not declared in the schema"})
		}
	}

	return errs
}

// checkValue applies the kind's validation rule. Returns an error message or "".
func checkValue(f Field, v any) string {
	switch f.Kind {
	case String:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("expected a string, got %T", v)
		}
	case Bool:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("expected a boolean, got %T", v)
		}
	case Int:
		switch v.(type) {
		case int, int64:
		default:
			return fmt.Sprintf("expected an integer, got %T", v)
		}
	case Date:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("expected a date string, got %T", v)
		}
		if _, err := ParseDate(s); err != nil {
			return fmt.Sprintf("invalid date string %q", s)
		}
	case Asset:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("expected an asset path, got %T", v)
		}
		if !assetPathRe.MatchString(s) {
			return fmt.Sprintf("%q is not a .assets/... path", s)
		}
		if len(f.Extensions) > 0 && !hasExtension(s, f.Extensions) {
			return fmt.Sprintf("%q must have one of the extensions %s", s, strings.Join(f.Extensions, "|"))
		}
	case StringList:
		items, ok := v.([]any)
		if !ok {
			return fmt.Sprintf("expected a list of strings, got %T", v)
		}
		for i, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Sprintf("element %d: expected a string, got %T", i, item)
			}
		}
	}
	return ""
}

func hasExtension(path string, exts []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}
