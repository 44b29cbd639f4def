package handler

import (
	"net/http"
	"strconv"

	"commerce-core/internal/model"
	"commerce-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ProductHandler serves the catalogue.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// List handles GET /api/products?category=&inStock=&limit=&offset=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error(), h.logger)
		return
	}

	filter := model.CatalogFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
		Offset:   offset,
	}
	if s := r.URL.Query().Get("inStock"); s != "" {
		if filter.InStockOnly, err = strconv.ParseBool(s); err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid inStock parameter", h.logger)
			return
		}
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// Get handles GET /api/products/{productID}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
