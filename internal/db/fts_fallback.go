//go:build !sqlite_fts5

package db

import (
	"database/sql"
	"fmt"

	"github.com/luzzle/luzzle/internal/schema"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback over the note columns.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	// Notes already live in the per-type tables; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _, _ string) {}

// Search performs a LIKE-based search over every piece table (fallback when
// FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"

	var out []SearchResult
	for _, s := range schema.Types() {
		if len(out) >= limit {
			break
		}
		rows, err := db.conn.Query(
			fmt.Sprintf("SELECT slug, substr(note, 1, 200) FROM %s WHERE slug LIKE ? OR note LIKE ? LIMIT ?", s.Table),
			like, like, limit-len(out))
		if err != nil {
			return nil, fmt.Errorf("db: search %s: %w", s.Type, err)
		}
		for rows.Next() {
			r := SearchResult{Type: s.Type}
			if err := rows.Scan(&r.Slug, &r.Snippet); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}
