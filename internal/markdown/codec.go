// Package markdown splits piece files into YAML frontmatter and body and
// serializes the reverse.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/luzzle/luzzle/internal/apperr"
	"github.com/luzzle/luzzle/internal/schema"
)

const delim = "---"

// Document is a parsed and validated piece file.
type Document struct {
	Slug        string
	Frontmatter map[string]any
	Body        string
}

// Extract splits a leading YAML block (between --- delimiters) from the
// markdown body. Without a block the frontmatter is an empty mapping and the
// body is the original text. The body is always trimmed of trailing whitespace.
func Extract(data []byte) (map[string]any, string, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return map[string]any{}, trimRight(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n" + delim))
	if idx < 0 {
		// No closing delimiter; the whole document is body.
		return map[string]any{}, trimRight(data), nil
	}

	yamlBlock := rest[:idx]
	after := rest[idx+1+len(delim):]
	// Drop the single newline that terminates the closing delimiter line, but
	// keep any further leading whitespace: it belongs to the body.
	if bytes.HasPrefix(after, []byte("\r\n")) {
		after = after[2:]
	} else if bytes.HasPrefix(after, []byte("\n")) {
		after = after[1:]
	}

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("markdown: invalid frontmatter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}

	return fm, trimRight(after), nil
}

// Serialize produces "---\n<yaml>---\n<body>\n". The frontmatter block is
// always present (an empty mapping serializes to an empty block) and the body
// always ends with exactly one trailing newline.
func Serialize(body string, fm map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if len(fm) > 0 {
		out, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("markdown: serialize frontmatter: %w", err)
		}
		buf.Write(out)
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(strings.TrimRight(body, " \t\r\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Decode parses data and validates its frontmatter against the type schema.
// On success it returns the document; on failure a *apperr.PieceError carrying
// the slug and the full list of validation errors.
func Decode(slug string, data []byte, s *schema.Schema) (*Document, error) {
	fm, body, err := Extract(data)
	if err != nil {
		return nil, &apperr.PieceError{
			Slug:   slug,
			Fields: []apperr.FieldError{{Field: "frontmatter", Message: err.Error()}},
		}
	}
	if errs := s.Validate(fm); errs != nil {
		return nil, &apperr.PieceError{Slug: slug, Fields: errs}
	}
	return &Document{Slug: slug, Frontmatter: fm, Body: body}, nil
}

func trimRight(data []byte) string {
	return strings.TrimRight(string(data), " \t\r\n")
}
