package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce-core/internal/model"
	"commerce-core/internal/pricing"
	"commerce-core/internal/repository"

	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo       repository.CartRepository
	productRepo    repository.ProductRepository
	membershipRepo repository.MembershipRepository
	stock          StockService
	resolver       ProductResolver
	tiers          pricing.Tiers
	baseShipping   int64
	logger         zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	membershipRepo repository.MembershipRepository,
	stock StockService,
	resolver ProductResolver,
	tiers pricing.Tiers,
	baseShipping int64,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		cartRepo:       cartRepo,
		productRepo:    productRepo,
		membershipRepo: membershipRepo,
		stock:          stock,
		resolver:       resolver,
		tiers:          tiers,
		baseShipping:   baseShipping,
		logger:         logger.With().Str("service", "cart").Logger(),
	}
}

// Add accumulates qty onto the line. The stock check and the write are one
// conditional upsert, so concurrent adds for the same line cannot both pass.
func (s *cartService) Add(ctx context.Context, userID, productID string, qty int) (*model.CartView, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}
	if qty <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.lookupProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available, err := s.stock.PeekAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}

	newQty, ok, err := s.cartRepo.AddWithinLimit(ctx, userID, productID, qty, product.UnitPrice, available)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("failed to add to cart")
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	if !ok {
		existing, err := s.cartRepo.Quantity(ctx, userID, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to read cart line: %w", err)
		}
		s.logger.Info().
			Str("user_id", userID).
			Str("product_id", productID).
			Int("requested", existing+qty).
			Int("available", available).
			Msg("add to cart rejected, insufficient stock")
		return nil, model.NewInsufficientStockError(model.StockShortage{
			ProductID: productID,
			Requested: existing + qty,
			Available: available,
		})
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("product_id", productID).
		Int("quantity", newQty).
		Msg("cart line updated")

	return s.View(ctx, userID)
}

// AddByName resolves name through the catalogue. Only the product ID is
// taken from the resolver; price and stock are re-read by Add.
func (s *cartService) AddByName(ctx context.Context, userID, name string, qty int) (*model.CartView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidInput.WithMessage("product name is required")
	}
	if s.resolver == nil {
		return nil, model.ErrInvalidInput.WithMessage("product lookup by name is not available")
	}

	resolved, err := s.resolver.ResolveProduct(ctx, name)
	if err != nil {
		s.logger.Debug().Err(err).Str("name", name).Msg("failed to resolve product")
		if errors.Is(err, model.ErrProductNotFound) {
			return nil, model.ErrInvalidInput.WithMessage("unknown product %q", name)
		}
		return nil, err
	}

	return s.Add(ctx, userID, resolved.ProductID, qty)
}

// SetQuantity overwrites the line. Repeating the call with the same quantity
// leaves the cart unchanged.
func (s *cartService) SetQuantity(ctx context.Context, userID, productID string, qty int) (*model.CartView, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	product, err := s.lookupProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available, err := s.stock.PeekAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > available {
		return nil, model.NewInsufficientStockError(model.StockShortage{
			ProductID: productID,
			Requested: qty,
			Available: available,
		})
	}

	if err := s.cartRepo.Set(ctx, userID, productID, qty, product.UnitPrice); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("failed to set cart quantity")
		return nil, fmt.Errorf("failed to set cart quantity: %w", err)
	}

	return s.View(ctx, userID)
}

// Remove deletes the line. Removing a product that is not in the cart is not
// an error.
func (s *cartService) Remove(ctx context.Context, userID, productID string) (*model.CartView, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}
	if productID == "" {
		return nil, model.ErrInvalidInput.WithMessage("product ID is required")
	}

	if _, err := s.cartRepo.Remove(ctx, userID, productID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("failed to remove cart line")
		return nil, fmt.Errorf("failed to remove cart line: %w", err)
	}

	return s.View(ctx, userID)
}

// Clear empties the cart.
func (s *cartService) Clear(ctx context.Context, userID string) (*model.CartView, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	removed, err := s.cartRepo.Clear(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to clear cart")
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}
	s.logger.Debug().Str("user_id", userID).Int64("lines", removed).Msg("cart cleared")

	return s.View(ctx, userID)
}

// View prices the cart with the user's membership tier.
func (s *cartService) View(ctx context.Context, userID string) (*model.CartView, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	lines, err := s.cartRepo.List(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list cart")
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}

	tierName, err := s.membershipRepo.TierOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}
	tier := s.tiers.Lookup(tierName)

	view := &model.CartView{
		UserID: userID,
		Lines:  make([]model.CartViewLine, len(lines)),
		Tier:   tier.Name,
	}
	priced := make([]pricing.Line, len(lines))
	for i, l := range lines {
		view.Lines[i] = model.CartViewLine{CartLine: l, LineTotal: l.LineTotal()}
		priced[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	view.Pricing = pricing.Calculate(priced, tier, s.baseShipping)

	return view, nil
}

// lookupProduct rejects unknown products as invalid input.
func (s *cartService) lookupProduct(ctx context.Context, productID string) (*model.Product, error) {
	if productID == "" {
		return nil, model.ErrInvalidInput.WithMessage("product ID is required")
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrInvalidInput.WithMessage("unknown product %q", productID)
	}
	return product, nil
}
