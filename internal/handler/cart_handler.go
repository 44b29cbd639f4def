package handler

import (
	"net/http"
	"strings"

	"commerce-core/internal/model"
	"commerce-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CartHandler handles cart HTTP requests for the identified user.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// View handles GET /api/cart.
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddItem handles POST /api/cart/items. The product is given either by id or
// by a free-text name.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, err.Error(), h.logger)
		return
	}

	productID := strings.TrimSpace(req.ProductID)
	name := strings.TrimSpace(req.Name)

	var (
		view *model.CartView
		err  error
	)
	switch {
	case productID != "" && name != "":
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "provide either productId or name, not both", h.logger)
		return
	case productID != "":
		view, err = h.service.Add(r.Context(), userID(r), productID, req.Quantity)
	case name != "":
		view, err = h.service.AddByName(r.Context(), userID(r), name, req.Quantity)
	default:
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "productId or name is required", h.logger)
		return
	}
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// SetItem handles PUT /api/cart/items/{productID}.
func (h *CartHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	var req model.SetQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, err.Error(), h.logger)
		return
	}

	view, err := h.service.SetQuantity(r.Context(), userID(r), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/cart/items/{productID}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Remove(r.Context(), userID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Clear(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
