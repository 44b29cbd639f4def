package handler

import (
	"net/http"

	"commerce-core/internal/model"
	"commerce-core/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error(), h.logger)
		return
	}

	orders, err := h.service.List(r.Context(), userID(r), limit, offset)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{orderID}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid order ID format", h.logger)
		return
	}

	order, err := h.service.Get(r.Context(), userID(r), orderID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/orders/{orderID}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid order ID format", h.logger)
		return
	}

	order, err := h.service.Cancel(r.Context(), userID(r), orderID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
