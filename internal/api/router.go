package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, assets *AssetHandler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Piece reads.
	r.Get("/pieces/{type}", h.ListPieces)
	r.Get("/pieces/{type}/{slug}", h.GetPiece)

	// Search.
	r.Get("/search", h.Search)

	// Manual reconciliation trigger.
	r.Post("/sync", h.Sync)

	// Asset pass-through.
	r.Get("/assets/*", assets.Serve)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
