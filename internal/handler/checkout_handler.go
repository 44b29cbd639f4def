package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"commerce-core/internal/model"
	"commerce-core/internal/service"

	"github.com/rs/zerolog"
)

// HeaderIdempotencyKey makes a checkout safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// CheckoutHandler handles checkout requests.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Checkout handles POST /api/checkout. An empty body checks out the whole
// cart. A replayed idempotent request answers 200 instead of 201.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, err.Error(), h.logger)
		return
	}
	req.UserID = userID(r)
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	order, err := h.service.Checkout(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if order.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, order)
}
