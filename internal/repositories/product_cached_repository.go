package repositories

import (
	"context"
	"log/slog"

	"adminpanel/internal/models"
)

const productListKey = "products:all"

// ProductCache is the subset of cache.Cache used for cache-aside reads.
type ProductCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedProductRepository serves reads from a cache and falls back to the
// wrapped repository. Writes go to the wrapped repository first and then
// invalidate the affected keys. Cache failures never fail a request.
type CachedProductRepository struct {
	next   ProductRepository
	cache  ProductCache
	logger *slog.Logger
}

// NewCachedProductRepository wraps next with cache.
func NewCachedProductRepository(next ProductRepository, cache ProductCache, logger *slog.Logger) *CachedProductRepository {
	return &CachedProductRepository{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

func productKey(id string) string {
	return "products:" + id
}

func (r *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var cached []models.Product
	found, err := r.cache.Get(ctx, productListKey, &cached)
	if err != nil {
		r.logger.WarnContext(ctx, "product cache read failed", slog.String("key", productListKey), slog.Any("error", err))
	}
	if found {
		return cached, nil
	}

	products, err := r.next.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, productListKey, products); err != nil {
		r.logger.WarnContext(ctx, "product cache write failed", slog.String("key", productListKey), slog.Any("error", err))
	}
	return products, nil
}

func (r *CachedProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	key := productKey(id)
	var cached models.Product
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		r.logger.WarnContext(ctx, "product cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	if found {
		return &cached, nil
	}

	product, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, product); err != nil {
		r.logger.WarnContext(ctx, "product cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return product, nil
}

func (r *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.next.Create(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, productListKey)
	return nil
}

func (r *CachedProductRepository) Update(ctx context.Context, product *models.Product) error {
	if err := r.next.Update(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, productListKey, productKey(product.ID))
	return nil
}

func (r *CachedProductRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, productListKey, productKey(id))
	return nil
}

func (r *CachedProductRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.WarnContext(ctx, "product cache invalidation failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}
