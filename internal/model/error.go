package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Kind      ErrorKind       `json:"kind,omitempty"`
	Shortages []StockShortage `json:"shortages,omitempty"`
}

// ErrorKind classifies failures so callers can decide whether to retry,
// correct their input or raise an alarm.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientStock   ErrorKind = "insufficient_stock"
	KindNothingToRefund     ErrorKind = "nothing_to_refund"
	KindProductMismatch     ErrorKind = "product_mismatch"
	KindUnsupportedFile     ErrorKind = "unsupported_file"
	KindTransactionConflict ErrorKind = "transaction_conflict"
	KindTimeout             ErrorKind = "timeout"
	KindIntegrityViolation  ErrorKind = "integrity_violation"
	KindInternal            ErrorKind = "internal"
)

// Retryable reports whether a caller may retry the same operation unchanged.
func (k ErrorKind) Retryable() bool {
	return k == KindTransactionConflict || k == KindTimeout
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeOrderLineNotFound   = "ORDER_LINE_NOT_FOUND"
	ErrCodeTicketNotFound      = "TICKET_NOT_FOUND"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeNotInCart           = "NOT_IN_CART"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	ErrCodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	ErrCodeActiveRefunds       = "ACTIVE_REFUNDS"
	ErrCodeAlreadyRestocked    = "ALREADY_RESTOCKED"
	ErrCodeNothingToRefund     = "NOTHING_TO_REFUND"
	ErrCodeProductMismatch     = "PRODUCT_MISMATCH"
	ErrCodeUnsupportedFile     = "UNSUPPORTED_FILE"
	ErrCodeTransactionConflict = "TRANSACTION_CONFLICT"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeIntegrityViolation  = "INTEGRITY_VIOLATION"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeMissingUser         = "MISSING_USER"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is a typed business failure. Two domain errors are considered
// equal by errors.Is when their codes match, so sentinels can be compared
// against errors that carry extra context.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another *DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of the error with a more specific message.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	return &DomainError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		Err:     e.Err,
	}
}

// Wrap returns a copy of the error carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Err:     cause,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidInput        = NewDomainError(KindInvalidInput, ErrCodeInvalidInput, "Invalid input")
	ErrInvalidQuantity     = NewDomainError(KindInvalidInput, ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrMissingUser         = NewDomainError(KindInvalidInput, ErrCodeMissingUser, "User ID is required")
	ErrProductNotFound     = NewDomainError(KindNotFound, ErrCodeProductNotFound, "Product not found")
	ErrOrderNotFound       = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrOrderLineNotFound   = NewDomainError(KindNotFound, ErrCodeOrderLineNotFound, "Order does not contain this product")
	ErrTicketNotFound      = NewDomainError(KindNotFound, ErrCodeTicketNotFound, "Refund ticket not found")
	ErrEmptyCart           = NewDomainError(KindInvalidInput, ErrCodeEmptyCart, "Nothing to check out")
	ErrNotInCart           = NewDomainError(KindInvalidInput, ErrCodeNotInCart, "Selected product is not in the cart")
	ErrInsufficientStock   = NewDomainError(KindInsufficientStock, ErrCodeInsufficientStock, "Insufficient stock")
	ErrIdempotencyConflict = NewDomainError(KindInvalidInput, ErrCodeIdempotencyConflict, "Idempotency key was already used for a different checkout")
	ErrInvalidTransition   = NewDomainError(KindInvalidInput, ErrCodeInvalidTransition, "Status transition is not allowed")
	ErrActiveRefunds       = NewDomainError(KindInvalidInput, ErrCodeActiveRefunds, "Order has active refund requests")
	ErrAlreadyRestocked    = NewDomainError(KindInvalidInput, ErrCodeAlreadyRestocked, "Refund was already restocked")
	ErrNothingToRefund     = NewDomainError(KindNothingToRefund, ErrCodeNothingToRefund, "No refundable quantity remains")
	ErrProductMismatch     = NewDomainError(KindProductMismatch, ErrCodeProductMismatch, "Evidence does not match the ordered product")
	ErrUnsupportedFile     = NewDomainError(KindUnsupportedFile, ErrCodeUnsupportedFile, "Unsupported evidence file")
	ErrTransactionConflict = NewDomainError(KindTransactionConflict, ErrCodeTransactionConflict, "Transaction conflict, please retry")
	ErrTimeout             = NewDomainError(KindTimeout, ErrCodeTimeout, "Operation timed out")
	ErrIntegrityViolation  = NewDomainError(KindIntegrityViolation, ErrCodeIntegrityViolation, "Ledger integrity guard rejected the write")
)

// StockShortage describes one product that could not be reserved.
type StockShortage struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError lists every product that is short.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s (requested %d, available %d)", s.ProductID, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NewInsufficientStockError creates an error for the given shortages.
func NewInsufficientStockError(shortages ...StockShortage) *InsufficientStockError {
	return &InsufficientStockError{Shortages: shortages}
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return KindInsufficientStock
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return KindTimeout
	}

	return KindInternal
}
