package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luzzle/luzzle/internal/apperr"
	"github.com/luzzle/luzzle/internal/schema"
)

// GetPiece returns the full row for a slug, or apperr.ErrNotFound.
func (db *DB) GetPiece(s *schema.Schema, slug string) (map[string]any, error) {
	cols := columns(s)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE slug = ?", strings.Join(cols, ", "), s.Table)

	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	err := db.conn.QueryRow(query, slug).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("db: %s/%s: %w", s.Type, slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db: get %s/%s: %w", s.Type, slug, err)
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = normalize(*dest[i].(*any))
	}
	return row, nil
}

// Watermarks returns slug → change watermark (date_updated, falling back to
// date_added when null) for every row of a type.
func (db *DB) Watermarks(s *schema.Schema) (map[string]int64, error) {
	rows, err := db.conn.Query(
		fmt.Sprintf("SELECT slug, COALESCE(date_updated, date_added) FROM %s", s.Table))
	if err != nil {
		return nil, fmt.Errorf("db: watermarks %s: %w", s.Type, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var slug string
		var wm int64
		if err := rows.Scan(&slug, &wm); err != nil {
			return nil, err
		}
		out[slug] = wm
	}
	return out, rows.Err()
}

// InsertPiece writes a complete row and its FTS entry.
func (db *DB) InsertPiece(s *schema.Schema, row map[string]any) error {
	cols := columns(s)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = row[col]
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.Table, strings.Join(cols, ", "), placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("db: insert %s: %w", s.Type, err)
	}

	slug, _ := row["slug"].(string)
	note, _ := row["note"].(string)
	if err := ftsUpsert(tx, s.Type, slug, note); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdatePiece applies a sparse set of column changes to the row with the
// given slug, refreshing the FTS entry when the note changed.
func (db *DB) UpdatePiece(s *schema.Schema, slug string, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	sets := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	for _, col := range columns(s) {
		v, ok := changes[col]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	args = append(args, slug)

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		fmt.Sprintf("UPDATE %s SET %s WHERE slug = ?", s.Table, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return fmt.Errorf("db: update %s/%s: %w", s.Type, slug, err)
	}

	if note, ok := changes["note"].(string); ok {
		newSlug := slug
		if ns, ok := changes["slug"].(string); ok {
			newSlug = ns
		}
		if err := ftsUpsert(tx, s.Type, newSlug, note); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeletePiece removes a row and its FTS entry.
func (db *DB) DeletePiece(s *schema.Schema, slug string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, s.Type, slug)
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE slug = ?", s.Table), slug); err != nil {
		return fmt.Errorf("db: delete %s/%s: %w", s.Type, slug, err)
	}

	return tx.Commit()
}

// ListPieces returns rows of a type ordered by slug, with the total count.
func (db *DB) ListPieces(s *schema.Schema, limit, offset int) ([]map[string]any, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", s.Table)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db: count %s: %w", s.Type, err)
	}

	cols := columns(s)
	rows, err := db.conn.Query(
		fmt.Sprintf("SELECT %s FROM %s ORDER BY slug LIMIT ? OFFSET ?", strings.Join(cols, ", "), s.Table),
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("db: list %s: %w", s.Type, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalize(*dest[i].(*any))
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// AssetRefs returns the union of every asset-kind frontmatter value stored
// across all piece types.
func (db *DB) AssetRefs() (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, s := range schema.Types() {
		for _, f := range s.Fields() {
			if f.Kind != schema.Asset {
				continue
			}
			rows, err := db.conn.Query(
				fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL", f.Name, s.Table, f.Name))
			if err != nil {
				return nil, fmt.Errorf("db: asset refs %s.%s: %w", s.Table, f.Name, err)
			}
			for rows.Next() {
				var ref string
				if err := rows.Scan(&ref); err != nil {
					rows.Close()
					return nil, err
				}
				out[ref] = struct{}{}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
	}
	return out, nil
}

// CacheGet returns the stored checksum for a path, or empty string.
func (db *DB) CacheGet(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM luzzle_cache WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db: cache get: %w", err)
	}
	return cs, nil
}

// CachePut records the checksum for a path.
func (db *DB) CachePut(path, checksum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO luzzle_cache (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("db: cache put: %w", err)
	}
	return nil
}

// RecordSchema persists a managed-schema record for a type. date_updated is
// set only when an existing record's schema text actually changed.
func (db *DB) RecordSchema(s *schema.Schema, now time.Time) error {
	text, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("db: marshal schema %s: %w", s.Type, err)
	}

	var existing string
	err = db.conn.QueryRow(`SELECT schema FROM luzzle_schemas WHERE type = ?`, s.Type).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.conn.Exec(
			`INSERT INTO luzzle_schemas (type, schema, date_added) VALUES (?, ?, ?)`,
			s.Type, string(text), now.UnixMilli())
	case err == nil && existing != string(text):
		_, err = db.conn.Exec(
			`UPDATE luzzle_schemas SET schema = ?, date_updated = ? WHERE type = ?`,
			string(text), now.UnixMilli(), s.Type)
	}
	if err != nil {
		return fmt.Errorf("db: record schema %s: %w", s.Type, err)
	}
	return nil
}

// normalize maps driver-specific scan results onto the value types the
// mapper's conversion table uses.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
