package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"commerce-core/internal/cache"
	"commerce-core/internal/events"
	"commerce-core/internal/metrics"
	"commerce-core/internal/model"
	"commerce-core/internal/pricing"
	"commerce-core/internal/repository"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// fullCartFingerprint identifies a checkout of the whole cart.
const fullCartFingerprint = "full-cart"

// CheckoutOptions holds the checkout settings from configuration.
type CheckoutOptions struct {
	TxTimeout       time.Duration
	IdempotencyTTL  time.Duration
	BaseShippingFee int64
	Tiers           pricing.Tiers
}

// CheckoutDependencies groups the collaborators of the checkout service.
type CheckoutDependencies struct {
	Carts       repository.CartRepository
	Products    repository.ProductRepository
	Stock       repository.StockRepository
	Memberships repository.MembershipRepository
	Orders      repository.OrderRepository
	Claims      repository.IdempotencyRepository
	Cache       cache.IdempotencyCache
	Scheduler   DeliveryScheduler
	Events      events.Emitter
	Metrics     *metrics.Metrics
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	deps   CheckoutDependencies
	opts   CheckoutOptions
	logger zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDependencies, opts CheckoutOptions, logger zerolog.Logger) CheckoutService {
	if deps.Cache == nil {
		deps.Cache = cache.NopIdempotencyCache{}
	}
	if opts.Tiers == nil {
		opts.Tiers = pricing.DefaultTiers()
	}
	return &checkoutService{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("service", "checkout").Logger(),
	}
}

// Checkout converts the selected cart lines into a confirmed order in one
// transaction: reserve stock, write the order, delete the lines. With an
// idempotency key a retried request returns the first order instead.
func (s *checkoutService) Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	selection, err := validateCheckoutRequest(req)
	if err != nil {
		s.deps.Metrics.ObserveCheckout(string(model.KindOf(err)))
		return nil, err
	}
	fingerprint := checkoutFingerprint(selection)

	if req.IdempotencyKey != "" {
		if resp := s.replayFromCache(ctx, req, fingerprint); resp != nil {
			s.deps.Metrics.ObserveCheckout("replayed")
			return resp, nil
		}
	}

	txCtx, cancel := withTxTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	resp, err := s.checkout(txCtx, req, selection, fingerprint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrTimeout) {
			err = model.ErrTimeout.Wrap(err)
		}
		s.deps.Metrics.ObserveCheckout(string(model.KindOf(err)))
		return nil, err
	}

	if req.IdempotencyKey != "" {
		entry := cache.Entry{OrderID: resp.ID, Fingerprint: fingerprint}
		if err := s.deps.Cache.Set(ctx, req.UserID, req.IdempotencyKey, entry, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("failed to cache idempotency key")
		}
	}

	if resp.Replayed {
		s.deps.Metrics.ObserveCheckout("replayed")
		return resp, nil
	}

	s.deps.Metrics.ObserveCheckout("created")
	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Schedule(resp.Order)
	}
	if s.deps.Events != nil {
		s.deps.Events.Emit(ctx, events.OrderCreated, resp.ID.String(), resp)
	}

	return resp, nil
}

func (s *checkoutService) checkout(ctx context.Context, req *model.CheckoutRequest, selection []string, fingerprint string) (resp *model.OrderResponse, err error) {
	tx, err := s.deps.Orders.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to check out: %w", err)
	}
	defer rollbackOnError(ctx, tx, &err, s.logger)

	if req.IdempotencyKey != "" {
		var prior *model.OrderResponse
		prior, err = s.claim(ctx, tx, req, fingerprint)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			// Nothing was written; release the claim lock.
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Warn().Err(rbErr).Msg("failed to rollback replayed checkout")
			}
			return prior, nil
		}
	}

	cartLines, err := s.deps.Carts.LockLines(ctx, tx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}

	selected, err := selectCartLines(cartLines, selection)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, len(selected))
	for i, l := range selected {
		productIDs[i] = l.ProductID
	}

	prices, err := s.deps.Products.PricesForUpdate(ctx, tx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read prices: %w", err)
	}

	tierName, err := s.deps.Memberships.TierOf(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}
	tier := s.opts.Tiers.Lookup(tierName)

	now := time.Now().UTC()
	order := model.Order{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Status:         model.OrderStatusConfirmed,
		MembershipTier: tier.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	orderLines := make([]model.OrderLine, len(selected))
	priced := make([]pricing.Line, len(selected))
	items := make([]model.StockItem, len(selected))
	for i, l := range selected {
		price, ok := prices[l.ProductID]
		if !ok {
			err = model.ErrProductNotFound.WithMessage("product %s is no longer available", l.ProductID)
			return nil, err
		}
		orderLines[i] = model.OrderLine{
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			LinePrice: price * int64(l.Quantity),
		}
		priced[i] = pricing.Line{UnitPrice: price, Quantity: l.Quantity}
		items[i] = model.StockItem{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	breakdown := pricing.Calculate(priced, tier, s.opts.BaseShippingFee)
	order.Subtotal = breakdown.Subtotal
	order.DiscountAmount = breakdown.DiscountAmount
	order.ShippingFee = breakdown.ShippingFee
	order.TotalPrice = breakdown.Total

	if err = s.deps.Stock.ReserveAll(ctx, tx, items); err != nil {
		s.logger.Info().Err(err).Str("user_id", req.UserID).Msg("checkout reservation failed")
		return nil, err
	}

	if err = s.deps.Orders.CreateOrder(ctx, tx, &order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err = s.deps.Orders.CreateOrderLines(ctx, tx, orderLines); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Int("line_count", len(orderLines)).
			Msg("failed to create order lines")
		return nil, fmt.Errorf("failed to create order lines: %w", err)
	}

	if err = s.deps.Carts.DeleteLines(ctx, tx, req.UserID, productIDs); err != nil {
		return nil, fmt.Errorf("failed to clear checked out lines: %w", err)
	}

	if req.IdempotencyKey != "" {
		if err = s.deps.Claims.AttachOrder(ctx, tx, req.UserID, req.IdempotencyKey, order.ID); err != nil {
			return nil, fmt.Errorf("failed to record idempotency key: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to check out: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", req.UserID).
		Int("line_count", len(orderLines)).
		Int64("total", order.TotalPrice).
		Msg("order created successfully")

	return &model.OrderResponse{Order: order, Lines: orderLines}, nil
}

// claim records the idempotency key inside tx. It returns the earlier order
// when the key was already used for the same selection.
func (s *checkoutService) claim(ctx context.Context, tx pgx.Tx, req *model.CheckoutRequest, fingerprint string) (*model.OrderResponse, error) {
	existing, claimed, err := s.deps.Claims.Claim(ctx, tx, model.CheckoutClaim{
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		Fingerprint:    fingerprint,
		ExpiresAt:      time.Now().Add(s.opts.IdempotencyTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	if existing.Fingerprint != fingerprint {
		s.logger.Warn().
			Str("user_id", req.UserID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("idempotency key reused for a different checkout")
		return nil, model.ErrIdempotencyConflict
	}
	if existing.OrderID == nil {
		// The first request holds the claim but has not committed.
		return nil, model.ErrTransactionConflict.WithMessage("checkout with this idempotency key is still in progress")
	}

	return s.loadOrder(ctx, *existing.OrderID)
}

// replayFromCache answers a retried checkout from Redis. Any miss, mismatch
// or error falls through to the database claim.
func (s *checkoutService) replayFromCache(ctx context.Context, req *model.CheckoutRequest, fingerprint string) *model.OrderResponse {
	entry, err := s.deps.Cache.Get(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("idempotency cache unavailable")
		return nil
	}
	if entry == nil || entry.Fingerprint != fingerprint {
		return nil
	}

	resp, err := s.loadOrder(ctx, entry.OrderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", entry.OrderID.String()).Msg("cached order could not be loaded")
		return nil
	}
	return resp
}

func (s *checkoutService) loadOrder(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	order, lines, err := s.deps.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound.WithMessage("order %s recorded for idempotency key not found", id)
	}
	return &model.OrderResponse{Order: *order, Lines: lines, Replayed: true}, nil
}

// validateCheckoutRequest returns the sorted, de-duplicated selection. An
// empty selection means the whole cart.
func validateCheckoutRequest(req *model.CheckoutRequest) ([]string, error) {
	if req == nil {
		return nil, model.ErrInvalidInput.WithMessage("checkout request is nil")
	}
	if req.UserID == "" {
		return nil, model.ErrMissingUser
	}
	if len(req.IdempotencyKey) > 255 {
		return nil, model.ErrInvalidInput.WithMessage("idempotency key must be at most 255 characters")
	}

	seen := make(map[string]bool, len(req.ProductIDs))
	selection := make([]string, 0, len(req.ProductIDs))
	for i, id := range req.ProductIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, model.ErrInvalidInput.WithMessage("product %d: product ID is required", i)
		}
		if !seen[id] {
			seen[id] = true
			selection = append(selection, id)
		}
	}
	sort.Strings(selection)
	return selection, nil
}

// selectCartLines picks the lines to check out, in product ID order.
func selectCartLines(lines []model.CartLine, selection []string) ([]model.CartLine, error) {
	if len(selection) == 0 {
		if len(lines) == 0 {
			return nil, model.ErrEmptyCart
		}
		selected := append([]model.CartLine(nil), lines...)
		sort.Slice(selected, func(i, j int) bool { return selected[i].ProductID < selected[j].ProductID })
		return selected, nil
	}

	byProduct := make(map[string]model.CartLine, len(lines))
	for _, l := range lines {
		byProduct[l.ProductID] = l
	}

	selected := make([]model.CartLine, 0, len(selection))
	for _, id := range selection {
		l, ok := byProduct[id]
		if !ok {
			return nil, model.ErrNotInCart.WithMessage("product %s is not in the cart", id)
		}
		selected = append(selected, l)
	}
	return selected, nil
}

// checkoutFingerprint hashes the selection so a reused idempotency key can be
// told apart from a retry.
func checkoutFingerprint(selection []string) string {
	if len(selection) == 0 {
		return fullCartFingerprint
	}
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(selection, "\x00")), 16)
}
