package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/luzzle/luzzle/internal/db"
	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/storage"
)

// NewStore builds the storage provider selected by the configuration.
func NewStore(cfg *Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case BackendWebDAV:
		w := cfg.Storage.WebDAV
		return storage.NewWebDAV(w.URL, w.Username, w.Password, w.Root)
	default:
		if err := os.MkdirAll(cfg.Pieces.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create pieces dir: %w", err)
		}
		return storage.NewFS(cfg.Pieces.Path)
	}
}

// OpenDB opens the SQLite database and records the current schema of every
// registered type.
func OpenDB(cfg *Config) (*db.DB, error) {
	database, err := db.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, s := range schema.Types() {
		if err := database.RecordSchema(s, now); err != nil {
			database.Close()
			return nil, err
		}
	}
	return database, nil
}

// ResolveTypes maps configured type names to schemas. An empty list selects
// every registered type.
func ResolveTypes(names []string) ([]*schema.Schema, error) {
	if len(names) == 0 {
		return schema.Types(), nil
	}
	out := make([]*schema.Schema, 0, len(names))
	for _, n := range names {
		s, err := schema.ForType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
