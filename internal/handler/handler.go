package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"commerce-core/internal/middleware"
	"commerce-core/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent; nothing useful can be done on failure.
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Warn().Str("error", code).Str("message", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeServiceError maps a service error onto an HTTP status by its kind.
// Internal errors are logged with their cause and reported generically.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	kind := model.KindOf(err)
	resp := model.ErrorResponse{Kind: kind}

	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		resp.Error = domainErr.Code
		resp.Message = domainErr.Message
	}

	var stockErr *model.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Error = model.ErrCodeInsufficientStock
		resp.Message = stockErr.Error()
		resp.Shortages = stockErr.Shortages
	}

	status := statusForKind(kind)
	switch kind {
	case model.KindInternal:
		resp.Error = model.ErrCodeInternalError
		resp.Message = "internal server error"
		logger.Error().Err(err).Msg("request failed")
	case model.KindTimeout:
		if resp.Error == "" {
			resp.Error, resp.Message = model.ErrCodeTimeout, model.ErrTimeout.Message
		}
		w.Header().Set("Retry-After", "1")
		logger.Warn().Err(err).Msg("request timed out")
	case model.KindTransactionConflict:
		w.Header().Set("Retry-After", "1")
		logger.Warn().Err(err).Msg("transaction conflict")
	case model.KindIntegrityViolation:
		logger.Error().Err(err).Msg("ledger integrity guard rejected the write")
	default:
		logger.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}

	writeJSON(w, status, resp)
}

func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindInvalidInput:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInsufficientStock, model.KindNothingToRefund, model.KindTransactionConflict, model.KindIntegrityViolation:
		return http.StatusConflict
	case model.KindProductMismatch:
		return http.StatusUnprocessableEntity
	case model.KindUnsupportedFile:
		return http.StatusUnsupportedMediaType
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// userID returns the caller set by middleware.UserIdentity.
func userID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// uuidParam parses a UUID route parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// pagination parses limit and offset query parameters. Missing values are
// zero and defaulted by the services.
func pagination(r *http.Request) (limit, offset int, err error) {
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, fmt.Errorf("invalid limit parameter")
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, fmt.Errorf("invalid offset parameter")
		}
	}
	return limit, offset, nil
}
