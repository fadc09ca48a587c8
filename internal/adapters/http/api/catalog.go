package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/plusolver/internal/adapters/repository"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/types"
)

// CatalogSource exposes the answer cache.
type CatalogSource interface {
	Cache() repository.Cache
}

// CatalogHandler serves read-only views of the answer cache.
type CatalogHandler struct {
	source   CatalogSource
	maxLimit int
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(source CatalogSource, maxLimit int) *CatalogHandler {
	if maxLimit <= 0 {
		maxLimit = defaultMaxCatalogLimit
	}
	return &CatalogHandler{source: source, maxLimit: maxLimit}
}

// HandleList handles GET /catalog?limit=N. limit defaults to and is capped
// at the configured maximum.
func (h *CatalogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := h.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeFailure(w, fmt.Errorf("%w: limit must be a positive integer", repository.ErrInvalidLimit))
			return
		}
		limit = min(n, h.maxLimit)
	}

	items, err := h.source.Cache().List(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CatalogResponse{Count: len(items), Items: items})
}

// HandleGet handles GET /catalog/{catalogID}.
func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "catalogID"))
	if id.IsZero() {
		writeFailure(w, fmt.Errorf("%w: missing catalog id", ErrBadRequest))
		return
	}
	item, err := h.source.Cache().Get(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
