package api

import (
	"context"
	"log/slog"

	"github.com/luzzle/luzzle/internal/db"
	"github.com/luzzle/luzzle/internal/piece"
	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/storage"
	"github.com/luzzle/luzzle/internal/sync"
)

// Service coordinates database reads and sync runs for the API layer.
type Service struct {
	db     *db.DB
	store  storage.Provider
	engine *sync.Engine
	logger *slog.Logger
}

// NewService creates a new API service.
func NewService(database *db.DB, store storage.Provider, engine *sync.Engine, logger *slog.Logger) *Service {
	return &Service{db: database, store: store, engine: engine, logger: logger}
}

// ListPieces returns a page of pieces of the given type, ordered by slug.
func (s *Service) ListPieces(_ context.Context, typ string, limit, offset int) ([]*piece.Piece, int, error) {
	sc, err := schema.ForType(typ)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.db.ListPieces(sc, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*piece.Piece, 0, len(rows))
	for _, row := range rows {
		p, err := piece.FromStored(sc, row)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// GetPiece returns one piece by type and slug.
func (s *Service) GetPiece(_ context.Context, typ, slug string) (*piece.Piece, error) {
	sc, err := schema.ForType(typ)
	if err != nil {
		return nil, err
	}
	row, err := s.db.GetPiece(sc, slug)
	if err != nil {
		return nil, err
	}
	return piece.FromStored(sc, row)
}

// Search runs a full-text query over piece notes.
func (s *Service) Search(_ context.Context, query string, limit int) ([]db.SearchResult, error) {
	return s.db.Search(query, limit)
}

// TriggerSync runs a full reconciliation of the piece tree against the
// database and returns the outcome. Asset prune deletes files and stays
// opt-in.
func (s *Service) TriggerSync(ctx context.Context, force, prune bool) (*sync.Report, error) {
	return s.engine.Run(ctx, sync.Options{Force: force, Prune: prune})
}
