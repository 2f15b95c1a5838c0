package repositories

import (
	"context"
	"errors"

	"adminpanel/internal/models"
)

// ErrProductNotFound is returned when no product has the requested ID.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// GetAll returns every product, newest first.
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// Update replaces an existing product. It never inserts.
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
