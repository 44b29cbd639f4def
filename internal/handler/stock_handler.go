package handler

import (
	"net/http"

	"commerce-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// StockHandler exposes unlocked stock reads.
type StockHandler struct {
	service service.StockService
	logger  zerolog.Logger
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(service service.StockService, logger zerolog.Logger) *StockHandler {
	return &StockHandler{
		service: service,
		logger:  logger.With().Str("handler", "stock").Logger(),
	}
}

type stockResponse struct {
	ProductID         string `json:"productId"`
	AvailableQuantity int    `json:"availableQuantity"`
}

// Peek handles GET /api/stock/{productID}.
func (h *StockHandler) Peek(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	available, err := h.service.PeekAvailable(r.Context(), productID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, AvailableQuantity: available})
}
