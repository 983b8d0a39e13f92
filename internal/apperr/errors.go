// Package apperr defines the error taxonomy shared across Luzzle components.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing file or database row.
	ErrNotFound = errors.New("not found")
	// ErrPathEscape signals a path that would resolve outside the storage root.
	// Security-relevant: never treated as recoverable.
	ErrPathEscape = errors.New("path escapes storage root")
	// ErrUnknownPieceType signals a type name outside the registry's closed set.
	ErrUnknownPieceType = errors.New("unknown piece type")
	// ErrConfig signals missing or invalid configuration; fatal at startup.
	ErrConfig = errors.New("invalid configuration")
)

// FieldError describes one frontmatter field that failed schema validation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PieceError is raised when a piece's frontmatter fails validation. It always
// carries the full list of field errors, never a partial one.
type PieceError struct {
	Slug   string
	Fields []FieldError
}

func (e *PieceError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("piece %q: %s", e.Slug, strings.Join(msgs, "; "))
}
