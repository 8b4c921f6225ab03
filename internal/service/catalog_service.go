package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"chatmart/internal/domain"
	"chatmart/internal/repository"
)

const (
	defaultPage      = 1
	defaultPerPage   = 20
	maxPerPage       = 100
	defaultSearchMax = 20
	maxSearchResults = 50
)

var (
	ErrInvalidPriceRange = errors.New("min price cannot exceed max price")
	ErrInvalidProduct    = errors.New("invalid product data")
	ErrEmptySearchQuery  = errors.New("search query cannot be empty")
)

// CatalogService is the storefront query surface plus the admin product CRUD
type CatalogService interface {
	ListProducts(ctx context.Context, filter *domain.ProductFilter) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id int64, countView bool) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	FeaturedProducts(ctx context.Context, limit int) ([]*domain.Product, error)

	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, id int64, update *domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListAllProducts(ctx context.Context, filter *domain.ProductFilter) (*domain.ProductPage, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(productRepo repository.ProductRepository, logger *zap.Logger) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		logger:      logger,
	}
}

// ListProducts returns a page of the public catalog. Hidden products are
// excluded regardless of the filter.
func (s *catalogService) ListProducts(ctx context.Context, filter *domain.ProductFilter) (*domain.ProductPage, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	products, total, err := s.productRepo.List(ctx, filter, false)
	if err != nil {
		return nil, err
	}

	return &domain.ProductPage{
		Products:   products,
		Pagination: domain.NewPageInfo(filter.Page, filter.PerPage, total),
	}, nil
}

// ListAllProducts is the admin listing: hidden products are included and the
// IsHidden filter is honored
func (s *catalogService) ListAllProducts(ctx context.Context, filter *domain.ProductFilter) (*domain.ProductPage, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	products, total, err := s.productRepo.List(ctx, filter, true)
	if err != nil {
		return nil, err
	}

	return &domain.ProductPage{
		Products:   products,
		Pagination: domain.NewPageInfo(filter.Page, filter.PerPage, total),
	}, nil
}

// GetProduct loads a single product, optionally counting the lookup as a
// view. The view counter is bumped best-effort off the result.
func (s *catalogService) GetProduct(ctx context.Context, id int64, countView bool) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if countView {
		if err := s.productRepo.IncrementViews(ctx, id); err != nil {
			s.logger.Warn("failed to count product view",
				zap.Int64("product_id", id), zap.Error(err))
		} else {
			product.ViewsCount++
		}
	}

	return product, nil
}

// SearchProducts performs a case-insensitive substring search over visible,
// available products
func (s *catalogService) SearchProducts(ctx context.Context, query string, limit int) ([]*domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptySearchQuery
	}

	if limit <= 0 {
		limit = defaultSearchMax
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	return s.productRepo.Search(ctx, query, limit)
}

// Categories lists the distinct categories of the visible catalog
func (s *catalogService) Categories(ctx context.Context) ([]string, error) {
	return s.productRepo.Categories(ctx)
}

// FeaturedProducts returns the most popular purchasable products
func (s *catalogService) FeaturedProducts(ctx context.Context, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	return s.productRepo.Featured(ctx, limit)
}

// CreateProduct validates and stores a new catalog item
func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return err
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name))

	return nil
}

// UpdateProduct applies a partial update to an existing product and returns
// the updated row
func (s *catalogService) UpdateProduct(ctx context.Context, id int64, update *domain.ProductUpdate) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyProductUpdate(product, update)

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product updated", zap.Int64("product_id", id))

	return product, nil
}

// DeleteProduct retires a product from sale. The row stays so order history
// and cart snapshots keep resolving.
func (s *catalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.productRepo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// normalizeFilter clamps pagination and rejects inverted price ranges
func normalizeFilter(filter *domain.ProductFilter) (*domain.ProductFilter, error) {
	if filter == nil {
		filter = &domain.ProductFilter{}
	}

	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, ErrInvalidPriceRange
	}

	if filter.Page < 1 {
		filter.Page = defaultPage
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}

	filter.Search = strings.TrimSpace(filter.Search)

	return filter, nil
}

func validateProduct(product *domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return ErrInvalidProduct
	}
	if product.Price.IsNegative() {
		return ErrInvalidProduct
	}
	if product.StockQuantity < 0 {
		return ErrInvalidProduct
	}
	if product.MinOrderQuantity < 1 {
		return ErrInvalidProduct
	}
	if product.MaxOrderQuantity != nil && *product.MaxOrderQuantity < product.MinOrderQuantity {
		return ErrInvalidProduct
	}
	return nil
}

func applyProductUpdate(product *domain.Product, update *domain.ProductUpdate) {
	if update == nil {
		return
	}
	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.ImageURL != nil {
		product.ImageURL = *update.ImageURL
	}
	if update.DetailURL != nil {
		product.DetailURL = *update.DetailURL
	}
	if update.StockQuantity != nil {
		product.StockQuantity = *update.StockQuantity
	}
	if update.IsAvailable != nil {
		product.IsAvailable = *update.IsAvailable
	}
	if update.IsHidden != nil {
		product.IsHidden = *update.IsHidden
	}
	if update.Category != nil {
		product.Category = update.Category
	}
	if update.SortOrder != nil {
		product.SortOrder = *update.SortOrder
	}
	if update.Tags != nil {
		product.Tags = *update.Tags
	}
	if update.MinOrderQuantity != nil {
		product.MinOrderQuantity = *update.MinOrderQuantity
	}
	if update.MaxOrderQuantity != nil {
		product.MaxOrderQuantity = update.MaxOrderQuantity
	}
}
