//go:build sqlite_fts5

package db

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS pieces_fts USING fts5(
			type UNINDEXED,
			slug UNINDEXED,
			note,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, typ, slug, note string) error {
	_, _ = tx.Exec(`DELETE FROM pieces_fts WHERE type = ? AND slug = ?`, typ, slug)
	_, err := tx.Exec(`INSERT INTO pieces_fts (type, slug, note) VALUES (?, ?, ?)`, typ, slug, note)
	if err != nil {
		return fmt.Errorf("db: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, typ, slug string) {
	_, _ = tx.Exec(`DELETE FROM pieces_fts WHERE type = ? AND slug = ?`, typ, slug)
}

// Search performs an FTS5 full-text search over note bodies.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT type,
		       slug,
		       snippet(pieces_fts, 2, '<b>', '</b>', '...', 64)
		FROM pieces_fts
		WHERE pieces_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Type, &r.Slug, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
