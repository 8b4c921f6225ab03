package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatmart/internal/config"
	"chatmart/internal/domain"
	"chatmart/internal/notifier"
	"chatmart/internal/repository"
)

// notifyTimeout bounds the detached low-stock notification call
const notifyTimeout = 15 * time.Second

// InventoryService drives all stock movements. Reservations are atomic and
// never oversell; every reservation that drops a product below the reorder
// point fires an admin alert.
type InventoryService interface {
	Reserve(ctx context.Context, productID int64, quantity int) (*domain.Product, error)
	Restore(ctx context.Context, productID int64, quantity int) error
	BulkReserve(ctx context.Context, items []domain.StockRequest) ([]*domain.Product, error)
	BulkRestore(ctx context.Context, items []domain.StockRequest) error
	CheckAvailability(ctx context.Context, productID int64, quantity int) (*domain.Availability, error)
	LowStockReport(ctx context.Context, threshold int) ([]*domain.Product, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	notifier    notifier.Notifier
	cfg         config.MarketplaceConfig
	logger      *zap.Logger
}

// NewInventoryService creates a new instance of InventoryService
func NewInventoryService(
	productRepo repository.ProductRepository,
	alertNotifier notifier.Notifier,
	cfg config.MarketplaceConfig,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		productRepo: productRepo,
		notifier:    alertNotifier,
		cfg:         cfg,
		logger:      logger,
	}
}

// Reserve decrements stock for an order. On success the returned product
// reflects the post-reservation state.
func (s *inventoryService) Reserve(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	product, err := s.productRepo.ReserveStock(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock reserved",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("remaining", product.StockQuantity))

	s.maybeAlertLowStock(product)

	return product, nil
}

// Restore returns previously reserved stock, the compensation for a
// cancelled or failed order
func (s *inventoryService) Restore(ctx context.Context, productID int64, quantity int) error {
	if err := s.productRepo.RestoreStock(ctx, productID, quantity); err != nil {
		return err
	}

	s.logger.Info("stock restored",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	return nil
}

// BulkReserve reserves stock for a whole order atomically: either every line
// is reserved or none is
func (s *inventoryService) BulkReserve(ctx context.Context, items []domain.StockRequest) ([]*domain.Product, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty reservation: %w", repository.ErrInvalidQuantity)
	}

	products, err := s.productRepo.BulkReserveStock(ctx, items)
	if err != nil {
		return nil, err
	}

	s.logger.Info("bulk stock reserved", zap.Int("items", len(products)))

	for _, product := range products {
		s.maybeAlertLowStock(product)
	}

	return products, nil
}

// BulkRestore restores each line independently; failures on individual lines
// are collected rather than aborting the rest
func (s *inventoryService) BulkRestore(ctx context.Context, items []domain.StockRequest) error {
	if len(items) == 0 {
		return nil
	}
	return s.productRepo.BulkRestoreStock(ctx, items)
}

// CheckAvailability is a side-effect-free probe of whether a quantity could
// be reserved right now. It can be stale the moment it returns; Reserve is
// the authority.
func (s *inventoryService) CheckAvailability(ctx context.Context, productID int64, quantity int) (*domain.Availability, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	availability := &domain.Availability{
		MaxQuantity: product.MaxAvailableQuantity(),
	}

	switch {
	case !product.IsPurchasable():
		availability.Reason = "product is not available for purchase"
	case quantity < product.MinOrderQuantity:
		availability.Reason = fmt.Sprintf("minimum order quantity is %d", product.MinOrderQuantity)
	case product.MaxOrderQuantity != nil && quantity > *product.MaxOrderQuantity:
		availability.Reason = fmt.Sprintf("maximum order quantity is %d", *product.MaxOrderQuantity)
	case quantity > product.StockQuantity:
		availability.Reason = fmt.Sprintf("only %d in stock", product.StockQuantity)
	default:
		availability.Available = true
	}

	return availability, nil
}

// LowStockReport lists purchasable products below the reorder threshold.
// A non-positive threshold falls back to the configured default.
func (s *inventoryService) LowStockReport(ctx context.Context, threshold int) ([]*domain.Product, error) {
	if threshold <= 0 {
		threshold = s.cfg.LowStockThreshold
	}
	return s.productRepo.LowStock(ctx, threshold)
}

// maybeAlertLowStock fires the admin notification off the request path when
// a reservation left the product below the reorder point. Notification
// failure is logged, never surfaced to the buyer.
func (s *inventoryService) maybeAlertLowStock(product *domain.Product) {
	if !product.IsLowStock(s.cfg.LowStockThreshold) {
		return
	}

	alert := notifier.LowStockAlert{
		ProductID:   product.ID,
		ProductName: product.Name,
		Stock:       product.StockQuantity,
		Threshold:   s.cfg.LowStockThreshold,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyLowStock(ctx, alert); err != nil {
			s.logger.Error("failed to send low stock alert",
				zap.Int64("product_id", alert.ProductID),
				zap.Error(err))
		}
	}()
}
