package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/luzzle/luzzle/internal/apperr"
	"github.com/luzzle/luzzle/internal/piece"
	"github.com/luzzle/luzzle/internal/storage"
)

// AssetHandler streams binary assets out of the piece tree.
type AssetHandler struct {
	store storage.Provider
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(store storage.Provider) *AssetHandler {
	return &AssetHandler{store: store}
}

// Serve handles GET /assets/*. The wildcard is the path below the asset
// directory, e.g. /assets/books/abc123/cover.jpg.
func (h *AssetHandler) Serve(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("asset path is required"))
		return
	}

	ref := piece.AssetDir + "/" + raw
	rc, err := h.store.OpenRead(ref)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrPathEscape) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("asset read failed", slog.String("path", ref), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(ref)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("asset copy failed", slog.String("path", ref), slog.String("error", err.Error()))
	}
}
