package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/luzzle/luzzle/internal/apperr"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListPieces handles GET /api/pieces/{type}.
func (h *Handler) ListPieces(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListPieces(r.Context(), typ, limit, offset)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownPieceType) {
			writeJSON(w, http.StatusNotFound, errorBody("unknown piece type"))
			return
		}
		slog.Error("list pieces failed", slog.String("type", typ), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pieces": items,
		"total":  total,
	})
}

// GetPiece handles GET /api/pieces/{type}/{slug}.
func (h *Handler) GetPiece(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	slug := chi.URLParam(r, "slug")

	p, err := h.svc.GetPiece(r.Context(), typ, slug)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownPieceType):
			writeJSON(w, http.StatusNotFound, errorBody("unknown piece type"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			slog.Error("get piece failed",
				slog.String("type", typ),
				slog.String("slug", slug),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Sync handles POST /api/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Force bool `json:"force"`
		Prune bool `json:"prune"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	report, err := h.svc.TriggerSync(r.Context(), req.Force, req.Prune)
	if err != nil {
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	failures := make([]map[string]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, map[string]string{
			"path":  f.Path,
			"type":  f.Type,
			"error": f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inserted":      report.Inserted,
		"updated":       report.Updated,
		"unchanged":     report.Unchanged,
		"deleted":       report.Deleted,
		"pruned_assets": report.PrunedAssets,
		"failures":      failures,
	})
}
