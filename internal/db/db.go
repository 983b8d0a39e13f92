// Package db provides SQLite persistence for pieces: one table per piece
// type, a processing cache, managed-schema records, and optional FTS5
// full-text search over note bodies.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/luzzle/luzzle/internal/schema"
)

const auxSchemaSQL = `
CREATE TABLE IF NOT EXISTS luzzle_cache (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS luzzle_schemas (
	type         TEXT PRIMARY KEY,
	schema       TEXT NOT NULL,
	date_added   INTEGER NOT NULL,
	date_updated INTEGER
);
`

// DB wraps a sql.DB with piece-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema: one
// table per registered piece type plus the cache and managed-schema tables.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	for _, s := range schema.Types() {
		if _, err := conn.Exec(tableDDL(s)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("db: create table %s: %w", s.Table, err)
		}
	}
	if _, err := conn.Exec(auxSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: apply aux schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// tableDDL generates the CREATE TABLE statement for a piece type: the common
// columns plus one column per schema field. Field names come from the closed
// registry, never from user input.
func tableDDL(s *schema.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", s.Table)
	b.WriteString("\tid TEXT PRIMARY KEY,\n")
	b.WriteString("\tslug TEXT NOT NULL UNIQUE,\n")
	b.WriteString("\tnote TEXT NOT NULL DEFAULT '',\n")
	b.WriteString("\tdate_added INTEGER NOT NULL,\n")
	b.WriteString("\tdate_updated INTEGER")
	for _, f := range s.Fields() {
		fmt.Fprintf(&b, ",\n\t%s %s", f.Name, columnType(f.Kind))
	}
	b.WriteString("\n);")
	return b.String()
}

func columnType(k schema.Kind) string {
	switch k {
	case schema.Bool, schema.Int, schema.Date:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// columns returns the full column list for a piece type in DDL order.
func columns(s *schema.Schema) []string {
	out := append([]string{}, schema.CommonColumns...)
	for _, f := range s.Fields() {
		out = append(out, f.Name)
	}
	return out
}
