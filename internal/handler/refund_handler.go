package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"commerce-core/internal/intake"
	"commerce-core/internal/model"
	"commerce-core/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultMaxImageBytes bounds an uploaded evidence image when no limit is
// configured.
const defaultMaxImageBytes = 10 << 20

// IntakeProcessor runs the refund intake workflow.
type IntakeProcessor interface {
	Process(ctx context.Context, req *intake.Request) (*intake.Outcome, error)
}

// RefundHandler handles refund ledger and intake requests.
type RefundHandler struct {
	service       service.RefundService
	intake        IntakeProcessor
	maxImageBytes int64
	logger        zerolog.Logger
}

// NewRefundHandler creates a new refund handler.
// A maxImageBytes of zero or less uses a 10MB limit.
func NewRefundHandler(service service.RefundService, intake IntakeProcessor, maxImageBytes int64, logger zerolog.Logger) *RefundHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}
	return &RefundHandler{
		service:       service,
		intake:        intake,
		maxImageBytes: maxImageBytes,
		logger:        logger.With().Str("handler", "refund").Logger(),
	}
}

// Request handles POST /api/refunds. A capped request is still 201; the body
// says so. Nothing left to refund is 409 with the ledger's answer.
func (h *RefundHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req model.RefundRequestInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, err.Error(), h.logger)
		return
	}
	req.UserID = userID(r)

	result, err := h.service.RequestRefund(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if !result.Accepted() {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// Intake handles POST /api/refunds/intake, a multipart form with orderId,
// productId, quantity, reason and an optional image file.
func (h *RefundHandler) Intake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid multipart form", h.logger)
		return
	}
	defer r.MultipartForm.RemoveAll()

	orderID, err := uuid.Parse(r.FormValue("orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid order ID format", h.logger)
		return
	}
	qty, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidQuantity, "quantity must be an integer", h.logger)
		return
	}

	req := &intake.Request{
		UserID:    userID(r),
		OrderID:   orderID,
		ProductID: strings.TrimSpace(r.FormValue("productId")),
		Quantity:  qty,
		Reason:    r.FormValue("reason"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "failed to read image", h.logger)
			return
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		req.Image = &intake.Image{Filename: header.Filename, ContentType: contentType, Data: data}
	case errors.Is(err, http.ErrMissingFile):
		// No evidence; the workflow escalates.
	default:
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid image upload", h.logger)
		return
	}

	outcome, err := h.intake.Process(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, intakeStatus(outcome.State), outcome)
}

func intakeStatus(state intake.State) int {
	switch state {
	case intake.StateAutoApproved:
		return http.StatusCreated
	case intake.StateEscalated:
		return http.StatusAccepted
	case intake.StateRejected:
		return http.StatusUnprocessableEntity
	case intake.StateExhausted:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

// Get handles GET /api/refunds/{ticketID}. Tickets of other users are
// reported as not found.
func (h *RefundHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuidParam(r, "ticketID")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid ticket ID format", h.logger)
		return
	}

	ticket, err := h.service.Get(r.Context(), ticketID)
	if err == nil && ticket.UserID != userID(r) {
		err = model.ErrTicketNotFound
	}
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// ListForOrder handles GET /api/orders/{orderID}/refunds.
func (h *RefundHandler) ListForOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid order ID format", h.logger)
		return
	}

	tickets, err := h.service.ListForOrder(r.Context(), userID(r), orderID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// UpdateStatus handles PATCH /api/refunds/{ticketID}. It is an operator
// action guarded by the API key.
func (h *RefundHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuidParam(r, "ticketID")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid ticket ID format", h.logger)
		return
	}

	var req model.UpdateRefundStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, err.Error(), h.logger)
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "status is required", h.logger)
		return
	}

	ticket, err := h.service.UpdateStatus(r.Context(), ticketID, req.Status)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// Restock handles POST /api/refunds/{ticketID}/restock.
func (h *RefundHandler) Restock(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuidParam(r, "ticketID")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid ticket ID format", h.logger)
		return
	}

	ticket, err := h.service.Restock(r.Context(), ticketID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}
