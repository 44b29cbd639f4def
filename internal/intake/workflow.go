package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-core/internal/events"
	"commerce-core/internal/evidence"
	"commerce-core/internal/metrics"
	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LineLookup finds the order line a refund is filed against.
type LineLookup interface {
	GetLineDetail(ctx context.Context, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error)
}

// RefundLedger files refund tickets.
type RefundLedger interface {
	RequestRefund(ctx context.Context, req *model.RefundRequestInput) (*model.RefundResult, error)
}

// Thresholds are the minimum confidences for an automatic decision.
type Thresholds struct {
	Defect float64
	Match  float64
}

// Dependencies groups the collaborators of the workflow. Classifier and
// Matcher may be nil, in which case evidence is always escalated.
type Dependencies struct {
	Lines      LineLookup
	Ledger     RefundLedger
	Classifier DefectClassifier
	Matcher    ProductMatcher
	Evidence   evidence.Store
	Events     events.Emitter
	Metrics    *metrics.Metrics
}

// Workflow runs refund intake requests to a terminal state.
type Workflow struct {
	deps       Dependencies
	thresholds Thresholds
	now        func() time.Time
	logger     zerolog.Logger
}

// NewWorkflow creates an intake workflow.
func NewWorkflow(deps Dependencies, thresholds Thresholds, logger zerolog.Logger) *Workflow {
	return &Workflow{
		deps:       deps,
		thresholds: thresholds,
		now:        time.Now,
		logger:     logger.With().Str("component", "refund_intake").Logger(),
	}
}

// Process moves req from received to a terminal state. Errors are returned
// for invalid input, unknown order lines, unsupported files and ledger
// failures; every other path ends in an Outcome.
func (w *Workflow) Process(ctx context.Context, req *Request) (*Outcome, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	state := StateReceived
	log := w.logger.With().
		Str("user_id", req.UserID).
		Str("order_id", req.OrderID.String()).
		Str("product_id", req.ProductID).
		Logger()

	line, err := w.deps.Lines.GetLineDetail(ctx, req.OrderID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up order line: %w", err)
	}
	if line == nil || line.UserID != req.UserID {
		return nil, model.ErrOrderLineNotFound.WithMessage("order %s has no line for product %s", req.OrderID, req.ProductID)
	}
	if line.OrderStatus == model.OrderStatusCancelled {
		return nil, model.ErrInvalidInput.WithMessage("order %s was cancelled", req.OrderID)
	}

	if req.Image == nil || len(req.Image.Data) == 0 {
		return w.escalate(ctx, req, &Outcome{State: StateEscalated, Reason: ReasonNoEvidence}, log), nil
	}

	if !evidence.SupportedContentType(req.Image.ContentType) {
		w.deps.Metrics.ObserveIntake(string(model.KindUnsupportedFile))
		return nil, model.ErrUnsupportedFile.WithMessage("content type %q is not supported", req.Image.ContentType)
	}

	outcome := &Outcome{}
	outcome.EvidenceLocation = w.storeEvidence(ctx, req, log)

	state = w.advance(log, state, StateAwaitingClassification)

	if w.deps.Classifier == nil || w.deps.Matcher == nil {
		outcome.State, outcome.Reason = StateEscalated, ReasonClassifierUnavailable
		return w.escalate(ctx, req, outcome, log), nil
	}

	classification, err := w.deps.Classifier.Classify(ctx, *req.Image)
	if err != nil {
		if errors.Is(err, model.ErrUnsupportedFile) {
			w.deps.Metrics.ObserveIntake(string(model.KindUnsupportedFile))
			return nil, model.ErrUnsupportedFile.Wrap(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, model.ErrTimeout.Wrap(ctxErr)
		}
		log.Warn().Err(err).Msg("defect classifier unavailable")
		outcome.State, outcome.Reason = StateEscalated, ReasonClassifierUnavailable
		return w.escalate(ctx, req, outcome, log), nil
	}
	outcome.Classification = classification

	match, err := w.deps.Matcher.Match(ctx, line.ProductName, *classification)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, model.ErrTimeout.Wrap(ctxErr)
		}
		log.Warn().Err(err).Msg("product matcher unavailable")
		outcome.State, outcome.Reason = StateEscalated, ReasonMatcherUnavailable
		return w.escalate(ctx, req, outcome, log), nil
	}
	outcome.Match = match

	if !match.SameProduct || match.Confidence < w.thresholds.Match {
		outcome.State = w.advance(log, state, StateRejected)
		outcome.Reason = string(model.KindProductMismatch)
		w.deps.Metrics.ObserveIntake(string(outcome.State))
		log.Info().
			Bool("same_product", match.SameProduct).
			Float64("match_confidence", match.Confidence).
			Msg("evidence does not show the ordered product")
		return outcome, nil
	}

	if !classification.IsDefective || classification.Confidence < w.thresholds.Defect {
		outcome.State, outcome.Reason = StateEscalated, ReasonLowConfidence
		return w.escalate(ctx, req, outcome, log), nil
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = classification.IssueSummary
	}

	result, err := w.deps.Ledger.RequestRefund(ctx, &model.RefundRequestInput{
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Reason:        reason,
		InitialStatus: model.RefundStatusApproved,
	})
	if err != nil {
		w.deps.Metrics.ObserveIntake(string(model.KindOf(err)))
		return nil, err
	}
	outcome.Refund = result

	if result.Accepted() {
		outcome.State = w.advance(log, state, StateAutoApproved)
	} else {
		outcome.State = w.advance(log, state, StateExhausted)
		outcome.Reason = string(model.KindNothingToRefund)
	}
	w.deps.Metrics.ObserveIntake(string(outcome.State))

	return outcome, nil
}

func (w *Workflow) advance(log zerolog.Logger, from, to State) State {
	log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("intake state changed")
	return to
}

// escalate hands the request to a human reviewer.
func (w *Workflow) escalate(ctx context.Context, req *Request, outcome *Outcome, log zerolog.Logger) *Outcome {
	w.deps.Metrics.ObserveIntake(string(StateEscalated))

	log.Info().Str("reason", outcome.Reason).Msg("refund escalated for review")

	if w.deps.Events != nil {
		payload := map[string]any{
			"user_id":    req.UserID,
			"order_id":   req.OrderID,
			"product_id": req.ProductID,
			"quantity":   req.Quantity,
			"reason":     outcome.Reason,
			"note":       strings.TrimSpace(req.Reason),
		}
		if outcome.EvidenceLocation != "" {
			payload["evidence"] = outcome.EvidenceLocation
		}
		if outcome.Classification != nil {
			payload["issue_summary"] = outcome.Classification.IssueSummary
			payload["defect_confidence"] = outcome.Classification.Confidence
		}
		w.deps.Events.Emit(ctx, events.RefundEscalated, req.OrderID.String(), payload)
	}

	return outcome
}

// storeEvidence keeps a copy of the image. A failure is logged and the
// workflow continues.
func (w *Workflow) storeEvidence(ctx context.Context, req *Request, log zerolog.Logger) string {
	if w.deps.Evidence == nil {
		return ""
	}

	key := evidence.NewKey(req.OrderID.String(), req.Image.ContentType, w.now())
	location, err := w.deps.Evidence.Put(ctx, key, req.Image.ContentType, req.Image.Data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to store refund evidence")
		return ""
	}
	return location
}

func validateRequest(req *Request) error {
	if req == nil {
		return model.ErrInvalidInput.WithMessage("intake request is nil")
	}
	if req.UserID == "" {
		return model.ErrMissingUser
	}
	if req.OrderID == uuid.Nil {
		return model.ErrInvalidInput.WithMessage("order ID is required")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return model.ErrInvalidInput.WithMessage("product ID is required")
	}
	if req.Quantity <= 0 {
		return model.ErrInvalidQuantity
	}
	return nil
}
