package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chatmart/internal/config"
	"chatmart/internal/domain"
	"chatmart/internal/repository"
)

var (
	ErrCartFull         = errors.New("cart item limit reached")
	ErrQuantityTooLarge = errors.New("quantity exceeds the per-item limit")
)

// Cart is a user's cart together with its authoritative totals
type Cart struct {
	Items  []*domain.CartItem `json:"items"`
	Totals domain.CartTotals  `json:"totals"`
}

// CartService manages per-user carts and computes their totals. Totals are
// always derived from live product prices, never from client-sent amounts.
type CartService interface {
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
	GetCart(ctx context.Context, userID int64) (*Cart, error)
	GetCartWithPromocode(ctx context.Context, userID int64, code string) (*Cart, error)
	Validate(ctx context.Context, userID int64) (*domain.CartValidation, error)
}

type cartService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	promocodeSvc PromocodeService
	cfg          config.MarketplaceConfig
	logger       *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	promocodeSvc PromocodeService,
	cfg config.MarketplaceConfig,
	logger *zap.Logger,
) CartService {
	return &cartService{
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		promocodeSvc: promocodeSvc,
		cfg:          cfg,
		logger:       logger,
	}
}

// AddItem puts a product in the user's cart, merging with an existing line
// for the same product. The merged quantity is checked against the per-item
// cap and current availability; the price snapshot of the first add is kept.
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, repository.ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsPurchasable() {
		return nil, repository.ErrProductUnpurchasable
	}

	existing, err := s.cartRepo.FindItem(ctx, userID, productID)
	if err != nil && !errors.Is(err, repository.ErrCartItemNotFound) {
		return nil, err
	}

	newQuantity := quantity
	if existing != nil {
		newQuantity += existing.Quantity
	}

	if err := s.checkQuantity(product, newQuantity); err != nil {
		return nil, err
	}

	if existing == nil {
		count, err := s.cartRepo.CountByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if count >= s.cfg.MaxCartItems {
			return nil, ErrCartFull
		}
	}

	item := &domain.CartItem{
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		PriceAtAdd: product.Price,
	}
	if err := s.cartRepo.Upsert(ctx, item); err != nil {
		return nil, err
	}
	item.Product = product

	s.logger.Info("cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", item.Quantity))

	return item, nil
}

// UpdateQuantity replaces a cart line's quantity. Zero removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity < 0 {
		return nil, repository.ErrInvalidQuantity
	}
	if quantity == 0 {
		return nil, s.RemoveItem(ctx, userID, productID)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsPurchasable() {
		return nil, repository.ErrProductUnpurchasable
	}
	if err := s.checkQuantity(product, quantity); err != nil {
		return nil, err
	}

	if err := s.cartRepo.UpdateQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	return s.cartRepo.FindItem(ctx, userID, productID)
}

// RemoveItem drops a single line from the cart
func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	return s.cartRepo.Remove(ctx, userID, productID)
}

// Clear empties the user's cart
func (s *cartService) Clear(ctx context.Context, userID int64) error {
	return s.cartRepo.Clear(ctx, userID)
}

// GetCart loads the cart with totals computed at live prices
func (s *cartService) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	return s.GetCartWithPromocode(ctx, userID, "")
}

// GetCartWithPromocode loads the cart and, when a code is given, prices the
// discount into the totals. An inapplicable code fails the call rather than
// silently pricing without it.
func (s *cartService) GetCartWithPromocode(ctx context.Context, userID int64, code string) (*Cart, error) {
	items, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := s.computeTotals(items)

	if code != "" {
		discount, err := s.promocodeSvc.CalculateDiscount(ctx, code, userID, totals.Subtotal)
		if err != nil {
			return nil, err
		}
		totals.DiscountAmount = discount
		totals.Total = totals.Subtotal.Sub(discount).Add(totals.DeliveryCost)
		if totals.Total.IsNegative() {
			totals.Total = decimal.Zero
		}
	}

	return &Cart{Items: items, Totals: totals}, nil
}

// Validate checks every cart line against live product state and reports
// items that became unavailable, exceed current limits, or changed price
func (s *cartService) Validate(ctx context.Context, userID int64) (*domain.CartValidation, error) {
	items, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	validation := &domain.CartValidation{
		IsValid:    true,
		Issues:     []domain.CartIssue{},
		ValidItems: []*domain.CartItem{},
	}

	for _, item := range items {
		if !item.IsAvailable() {
			validation.IsValid = false
			validation.Issues = append(validation.Issues, domain.CartIssue{
				ProductID: item.ProductID,
				Issue:     domain.CartIssueUnavailable,
				Message:   "product is no longer available",
			})
			continue
		}

		if maxQty := item.MaxAvailableQuantity(); item.Quantity > maxQty {
			validation.IsValid = false
			validation.Issues = append(validation.Issues, domain.CartIssue{
				ProductID:   item.ProductID,
				Issue:       domain.CartIssueQuantity,
				Message:     fmt.Sprintf("only %d can be ordered", maxQty),
				MaxQuantity: &maxQty,
			})
			continue
		}

		if item.PriceChanged() {
			oldPrice := item.PriceAtAdd
			newPrice := item.CurrentUnitPrice()
			validation.IsValid = false
			validation.Issues = append(validation.Issues, domain.CartIssue{
				ProductID: item.ProductID,
				Issue:     domain.CartIssuePriceChanged,
				Message:   fmt.Sprintf("price changed from %s to %s", oldPrice, newPrice),
				OldPrice:  &oldPrice,
				NewPrice:  &newPrice,
			})
			// price changes are advisory: the item still counts as orderable
			validation.ValidItems = append(validation.ValidItems, item)
			continue
		}

		validation.ValidItems = append(validation.ValidItems, item)
	}

	return validation, nil
}

// checkQuantity validates a desired line quantity against the per-item cap,
// the product's order limits and current stock
func (s *cartService) checkQuantity(product *domain.Product, quantity int) error {
	if quantity > s.cfg.MaxItemQuantity {
		return ErrQuantityTooLarge
	}
	if quantity < product.MinOrderQuantity {
		return repository.ErrInvalidQuantity
	}
	if product.MaxOrderQuantity != nil && quantity > *product.MaxOrderQuantity {
		return repository.ErrInvalidQuantity
	}
	if quantity > product.StockQuantity {
		return repository.ErrInsufficientStock
	}
	return nil
}

// computeTotals prices the cart at live product prices. Delivery is free at
// or above the threshold; an empty cart carries no delivery cost.
func (s *cartService) computeTotals(items []*domain.CartItem) domain.CartTotals {
	totals := domain.CartTotals{
		Subtotal:       decimal.Zero,
		DeliveryCost:   decimal.Zero,
		DiscountAmount: decimal.Zero,
		Total:          decimal.Zero,
	}

	for _, item := range items {
		totals.TotalItems++
		totals.TotalQuantity += item.Quantity
		totals.Subtotal = totals.Subtotal.Add(item.CurrentTotalPrice())
	}

	if totals.TotalItems == 0 {
		totals.IsFreeDelivery = true
		return totals
	}

	totals.IsFreeDelivery = totals.Subtotal.GreaterThanOrEqual(s.cfg.FreeDeliveryThreshold)
	if !totals.IsFreeDelivery {
		totals.DeliveryCost = s.cfg.DeliveryCost
	}

	totals.Total = totals.Subtotal.Add(totals.DeliveryCost)
	return totals
}
