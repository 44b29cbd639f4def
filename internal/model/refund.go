package model

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus is the lifecycle state of a refund request.
type RefundStatus string

const (
	RefundStatusOpen       RefundStatus = "open"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusApproved   RefundStatus = "approved"
	RefundStatusRefunded   RefundStatus = "refunded"
	RefundStatusRejected   RefundStatus = "rejected"
	RefundStatusCanceled   RefundStatus = "canceled"
)

// ActiveRefundStatuses consume ordered quantity.
var ActiveRefundStatuses = []RefundStatus{
	RefundStatusOpen,
	RefundStatusProcessing,
	RefundStatusApproved,
	RefundStatusRefunded,
}

var refundTransitions = map[RefundStatus]map[RefundStatus]bool{
	RefundStatusOpen: {
		RefundStatusProcessing: true,
		RefundStatusApproved:   true,
		RefundStatusRejected:   true,
		RefundStatusCanceled:   true,
	},
	RefundStatusProcessing: {
		RefundStatusApproved: true,
		RefundStatusRejected: true,
		RefundStatusCanceled: true,
	},
	RefundStatusApproved: {
		RefundStatusRefunded: true,
		RefundStatusCanceled: true,
	},
	RefundStatusRefunded: {},
	RefundStatusRejected: {},
	RefundStatusCanceled: {},
}

// IsActive reports whether the status counts against the ordered quantity.
func (s RefundStatus) IsActive() bool {
	for _, a := range ActiveRefundStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s RefundStatus) Valid() bool {
	_, ok := refundTransitions[s]
	return ok
}

// CanTransition reports whether a ticket may move from s to next.
func (s RefundStatus) CanTransition(next RefundStatus) bool {
	return refundTransitions[s][next]
}

// RefundRequest is a refund ticket against one order line.
type RefundRequest struct {
	TicketID    uuid.UUID    `json:"ticketId" db:"ticket_id"`
	UserID      string       `json:"userId" db:"user_id"`
	OrderID     uuid.UUID    `json:"orderId" db:"order_id"`
	ProductID   string       `json:"productId" db:"product_id"`
	RequestQty  int          `json:"requestQty" db:"request_qty"`
	Reason      string       `json:"reason" db:"reason"`
	Status      RefundStatus `json:"status" db:"status"`
	RestockedAt *time.Time   `json:"restockedAt,omitempty" db:"restocked_at"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

// RefundDecision is the outcome of a ledger request.
type RefundDecision string

const (
	RefundAccepted        RefundDecision = "accepted"
	RefundCapped          RefundDecision = "capped"
	RefundNothingToRefund RefundDecision = "nothing_to_refund"
)

// RefundRequestInput represents the request payload for a refund.
type RefundRequestInput struct {
	UserID    string    `json:"-"`
	OrderID   uuid.UUID `json:"orderId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	// InitialStatus defaults to open. The intake workflow files tickets as approved.
	InitialStatus RefundStatus `json:"-"`
}

// RefundResult is the ledger's answer to a refund request. Ticket is nil when
// Decision is RefundNothingToRefund.
type RefundResult struct {
	Decision     RefundDecision `json:"decision"`
	Ticket       *RefundRequest `json:"ticket,omitempty"`
	RequestedQty int            `json:"requestedQty"`
	FinalQty     int            `json:"finalQty"`
	Remaining    int            `json:"remainingBefore"`
}

// Capped reports whether the requested quantity was reduced.
func (r *RefundResult) Capped() bool {
	return r.Decision == RefundCapped
}

// Accepted reports whether a ticket was written.
func (r *RefundResult) Accepted() bool {
	return r.Decision == RefundAccepted || r.Decision == RefundCapped
}

// UpdateRefundStatusRequest represents the request payload for a status change.
type UpdateRefundStatusRequest struct {
	Status RefundStatus `json:"status"`
}
