// Package intake decides what happens to a refund request that arrives with
// (or without) photo evidence: automatic approval through the refund ledger,
// rejection as a product mismatch, or escalation to a human reviewer.
package intake

import (
	"context"

	"commerce-core/internal/model"

	"github.com/google/uuid"
)

// State is a step of the intake workflow.
type State string

const (
	StateReceived               State = "received"
	StateAwaitingClassification State = "awaiting_classification"
	StateAutoApproved           State = "auto_approved"
	StateEscalated              State = "escalated"
	StateRejected               State = "rejected"
	// StateExhausted means the ledger had nothing left to refund.
	StateExhausted State = "exhausted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateAutoApproved, StateEscalated, StateRejected, StateExhausted:
		return true
	}
	return false
}

// Escalation reasons.
const (
	ReasonNoEvidence            = "no_evidence"
	ReasonLowConfidence         = "low_confidence"
	ReasonClassifierUnavailable = "classifier_unavailable"
	ReasonMatcherUnavailable    = "matcher_unavailable"
)

// Image is an uploaded evidence file.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Classification is the defect classifier's verdict on an image.
type Classification struct {
	IsDefective    bool    `json:"is_defective"`
	Confidence     float64 `json:"confidence"`
	MatchedProduct string  `json:"matched_product"`
	IssueSummary   string  `json:"issue_summary"`
}

// Match is the product matcher's verdict.
type Match struct {
	SameProduct bool    `json:"same_product"`
	Confidence  float64 `json:"confidence"`
}

// DefectClassifier inspects evidence. It returns model.ErrUnsupportedFile for
// files it cannot read.
type DefectClassifier interface {
	Classify(ctx context.Context, image Image) (*Classification, error)
}

// ProductMatcher decides whether the classified item is the ordered product.
type ProductMatcher interface {
	Match(ctx context.Context, targetProduct string, c Classification) (*Match, error)
}

// Request is one refund submitted through intake.
type Request struct {
	UserID    string
	OrderID   uuid.UUID
	ProductID string
	Quantity  int
	Reason    string
	Image     *Image
}

// Outcome describes where a request ended up.
type Outcome struct {
	State            State               `json:"state"`
	Reason           string              `json:"reason,omitempty"`
	Classification   *Classification     `json:"classification,omitempty"`
	Match            *Match              `json:"match,omitempty"`
	Refund           *model.RefundResult `json:"refund,omitempty"`
	EvidenceLocation string              `json:"evidenceLocation,omitempty"`
}
