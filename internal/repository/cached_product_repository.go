package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatmart/internal/domain"
)

const (
	categoriesCacheKey = "catalog:categories"
	featuredCacheKey   = "catalog:featured"
)

// cachedProductRepository is a read-through cache in front of a
// ProductRepository. Single-product reads, the category list and the
// featured ranking are cached; listings and all inventory mutations pass
// straight through, with mutations invalidating what they may have changed.
// The featured ranking is keyed per limit and expires by TTL alone.
// Cache failures degrade to database reads, never to request failures.
type cachedProductRepository struct {
	repo   ProductRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository wraps a ProductRepository with a Redis cache
func NewCachedProductRepository(repo ProductRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) ProductRepository {
	return &cachedProductRepository{
		repo:   repo,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func productCacheKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}

func (r *cachedProductRepository) getCached(ctx context.Context, key string, dest interface{}) bool {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		r.logger.Warn("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *cachedProductRepository) setCached(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *cachedProductRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (r *cachedProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Create(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, categoriesCacheKey)
	return nil
}

func (r *cachedProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Update(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, productCacheKey(product.ID), categoriesCacheKey)
	return nil
}

func (r *cachedProductRepository) SoftDelete(ctx context.Context, id int64) error {
	if err := r.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, productCacheKey(id), categoriesCacheKey)
	return nil
}

func (r *cachedProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := productCacheKey(id)

	var cached domain.Product
	if r.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	product, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.setCached(ctx, key, product)
	return product, nil
}

// List is not cached: the filter space is too wide for useful hit rates
func (r *cachedProductRepository) List(ctx context.Context, filter *domain.ProductFilter, includeHidden bool) ([]*domain.Product, int, error) {
	return r.repo.List(ctx, filter, includeHidden)
}

func (r *cachedProductRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Product, error) {
	return r.repo.Search(ctx, query, limit)
}

func (r *cachedProductRepository) Categories(ctx context.Context) ([]string, error) {
	var cached []string
	if r.getCached(ctx, categoriesCacheKey, &cached) {
		return cached, nil
	}

	categories, err := r.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}

	r.setCached(ctx, categoriesCacheKey, categories)
	return categories, nil
}

func (r *cachedProductRepository) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	key := fmt.Sprintf("%s:%d", featuredCacheKey, limit)

	var cached []*domain.Product
	if r.getCached(ctx, key, &cached) {
		return cached, nil
	}

	products, err := r.repo.Featured(ctx, limit)
	if err != nil {
		return nil, err
	}

	r.setCached(ctx, key, products)
	return products, nil
}

func (r *cachedProductRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	return r.repo.LowStock(ctx, threshold)
}

// IncrementViews does not invalidate: a slightly stale view counter on a
// cached product is acceptable until the TTL expires
func (r *cachedProductRepository) IncrementViews(ctx context.Context, id int64) error {
	return r.repo.IncrementViews(ctx, id)
}

func (r *cachedProductRepository) ReserveStock(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	product, err := r.repo.ReserveStock(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, productCacheKey(productID))
	return product, nil
}

func (r *cachedProductRepository) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	if err := r.repo.RestoreStock(ctx, productID, quantity); err != nil {
		return err
	}
	r.invalidate(ctx, productCacheKey(productID))
	return nil
}

func (r *cachedProductRepository) BulkReserveStock(ctx context.Context, items []domain.StockRequest) ([]*domain.Product, error) {
	products, err := r.repo.BulkReserveStock(ctx, items)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, productCacheKey(item.ProductID))
	}
	r.invalidate(ctx, keys...)
	return products, nil
}

func (r *cachedProductRepository) BulkRestoreStock(ctx context.Context, items []domain.StockRequest) error {
	err := r.repo.BulkRestoreStock(ctx, items)
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, productCacheKey(item.ProductID))
	}
	r.invalidate(ctx, keys...)
	return err
}
