package services

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"adminpanel/internal/apperr"
	"adminpanel/internal/models"
	"adminpanel/internal/repositories"
	"adminpanel/internal/storage"
	"adminpanel/pkg/rabbitmq"
	"adminpanel/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductAttributes carries the client-supplied product fields. A nil field
// is "not supplied": Create rejects it, Update leaves the stored value alone.
type ProductAttributes struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Stock       *int
	Featured    *bool
}

// missing lists the fields Create requires but attrs does not carry.
func (a ProductAttributes) missing() map[string]string {
	fields := make(map[string]string)
	if a.Name == nil {
		fields["name"] = "field is required"
	}
	if a.Description == nil {
		fields["description"] = "field is required"
	}
	if a.Price == nil {
		fields["price"] = "field is required"
	}
	if a.Category == nil {
		fields["category"] = "field is required"
	}
	if a.Stock == nil {
		fields["stock"] = "field is required"
	}
	return fields
}

func (a ProductAttributes) applyTo(p *models.Product) {
	if a.Name != nil {
		p.Name = *a.Name
	}
	if a.Description != nil {
		p.Description = *a.Description
	}
	if a.Price != nil {
		p.Price = *a.Price
	}
	if a.Category != nil {
		if c, err := models.ParseCategory(*a.Category); err == nil {
			p.Category = c
		} else {
			// Left as-is so validation reports it.
			p.Category = models.Category(*a.Category)
		}
	}
	if a.Stock != nil {
		p.Stock = *a.Stock
	}
	if a.Featured != nil {
		p.Featured = *a.Featured
	}
}

// ProductService handles business logic for products and their images.
type ProductService struct {
	productRepo repositories.ProductRepository
	images      storage.ImageStore
	validator   *validator.DefaultValidator
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// ProductServiceOption customizes a ProductService.
type ProductServiceOption func(*ProductService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProductServiceOption {
	return func(s *ProductService) { s.now = now }
}

// WithNotifier sets the event and cleanup publisher.
func WithNotifier(n Notifier) ProductServiceOption {
	return func(s *ProductService) { s.notifier = n }
}

// NewProductService creates a new ProductService.
func NewProductService(
	productRepo repositories.ProductRepository,
	images storage.ImageStore,
	v *validator.DefaultValidator,
	logger *slog.Logger,
	opts ...ProductServiceOption,
) *ProductService {
	s := &ProductService{
		productRepo: productRepo,
		images:      images,
		validator:   v,
		notifier:    NopNotifier{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every product, newest first.
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.productRepo.GetAll(ctx)
	if err != nil {
		return nil, apperr.Storage("could not list products", err)
	}
	for i := range products {
		products[i].ImageURL = s.images.URL(products[i].Image)
	}
	return products, nil
}

// GetByID returns a single product.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.ImageURL = s.images.URL(product.Image)
	return product, nil
}

// Create validates attrs, stores the image and then the record. If the
// record cannot be stored the image is removed again.
func (s *ProductService) Create(ctx context.Context, attrs ProductAttributes, upload *storage.Upload, principal *models.Principal) (*models.Product, error) {
	if err := authorizeWrite(principal); err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, apperr.Validation("image is required", map[string]string{"image": "field is required"})
	}

	product := &models.Product{}
	attrs.applyTo(product)
	if err := s.validate(product, attrs.missing()); err != nil {
		return nil, err
	}

	ref, err := s.images.Save(ctx, *upload)
	if err != nil {
		return nil, asStorage(err, "could not store image")
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.discardImage(ctx, ref, "product id generation failed")
		return nil, apperr.Storage("could not create product", err)
	}

	now := s.clock()
	createdBy := principal.UserID
	product.ID = id.String()
	product.Image = ref
	product.CreatedBy = &createdBy
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.discardImage(ctx, ref, "product create failed")
		return nil, apperr.Storage("could not save product", err)
	}

	s.logger.InfoContext(ctx, "product created", slog.String("product_id", product.ID), slog.String("actor", principal.UserID))
	s.publish(ctx, models.ProductCreated, product, principal)

	product.ImageURL = s.images.URL(product.Image)
	return product, nil
}

// Update applies a partial update. A replacement image is stored before the
// record is written and the previous image is only removed afterwards.
func (s *ProductService) Update(ctx context.Context, id string, attrs ProductAttributes, upload *storage.Upload, principal *models.Principal) (*models.Product, error) {
	if err := authorizeWrite(principal); err != nil {
		return nil, err
	}

	existing, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	attrs.applyTo(&updated)
	if err := s.validate(&updated, nil); err != nil {
		return nil, err
	}

	var newRef string
	if upload != nil {
		newRef, err = s.images.Save(ctx, *upload)
		if err != nil {
			return nil, asStorage(err, "could not store image")
		}
		updated.Image = newRef
	}
	updated.UpdatedAt = s.nextUpdatedAt(existing.UpdatedAt)

	if err := s.productRepo.Update(ctx, &updated); err != nil {
		if newRef != "" {
			s.discardImage(ctx, newRef, "product update failed")
		}
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, apperr.Storage("could not update product", err)
	}

	if newRef != "" && existing.Image != "" && existing.Image != newRef {
		s.discardImage(ctx, existing.Image, "image replaced")
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", updated.ID),
		slog.String("actor", principal.UserID),
		slog.Bool("image_replaced", newRef != ""))
	s.publish(ctx, models.ProductUpdated, &updated, principal)

	updated.ImageURL = s.images.URL(updated.Image)
	return &updated, nil
}

// Delete removes the product's image and then the product.
func (s *ProductService) Delete(ctx context.Context, id string, principal *models.Principal) error {
	if err := authorizeWrite(principal); err != nil {
		return err
	}

	existing, err := s.getProduct(ctx, id)
	if err != nil {
		return err
	}

	s.discardImage(ctx, existing.Image, "product deleted")

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return apperr.NotFound("product not found")
		}
		return apperr.Storage("could not delete product", err)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id), slog.String("actor", principal.UserID))
	s.publish(ctx, models.ProductDeleted, existing, principal)
	return nil
}

func (s *ProductService) getProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, apperr.Storage("could not load product", err)
	}
	return product, nil
}

// validate checks p without its image reference, which is assigned later.
// extra holds field errors found before validation, such as missing fields.
func (s *ProductService) validate(p *models.Product, extra map[string]string) error {
	fields := make(map[string]string)
	if err := s.validator.ValidateExcept(*p, "Image"); err != nil {
		fieldErrs := validator.FieldErrors(err)
		if fieldErrs == nil {
			return apperr.Validation("invalid product", nil)
		}
		maps.Copy(fields, fieldErrs)
	}
	maps.Copy(fields, extra)
	if len(fields) > 0 {
		return apperr.Validation("invalid product attributes", fields)
	}
	return nil
}

// discardImage deletes ref and queues it for the janitor when that fails.
// It runs even if the request context is already cancelled.
func (s *ProductService) discardImage(ctx context.Context, ref, reason string) {
	ctx = context.WithoutCancel(ctx)

	err := s.images.Delete(ctx, ref)
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		return
	}

	s.logger.WarnContext(ctx, "image delete failed, queueing cleanup",
		slog.String("image", ref), slog.String("reason", reason), slog.Any("error", err))

	job := rabbitmq.ImageCleanupJob{Image: ref, Reason: reason}
	if qErr := s.notifier.PublishImageCleanup(ctx, job); qErr != nil {
		s.logger.ErrorContext(ctx, "image orphaned",
			slog.String("image", ref), slog.Any("error", qErr))
	}
}

func (s *ProductService) publish(ctx context.Context, typ models.ProductEventType, p *models.Product, principal *models.Principal) {
	event := models.ProductEvent{
		Type:       typ,
		ProductID:  p.ID,
		Image:      p.Image,
		ActorID:    principal.UserID,
		OccurredAt: s.clock(),
	}
	if err := s.notifier.PublishProductEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "product event not published",
			slog.String("type", string(typ)), slog.String("product_id", p.ID), slog.Any("error", err))
	}
}

// clock returns the current time at the precision the database keeps.
func (s *ProductService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt keeps updated_at strictly increasing even if the wall clock
// stalls or steps back.
func (s *ProductService) nextUpdatedAt(prev time.Time) time.Time {
	now := s.clock()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func authorizeWrite(principal *models.Principal) error {
	if principal == nil || principal.UserID == "" {
		return apperr.Authentication("authentication required", nil)
	}
	if !Authorize(principal, models.RoleAdmin) {
		return apperr.Authorization("admin role required")
	}
	return nil
}

// asStorage keeps classified errors and wraps everything else as storage.
func asStorage(err error, msg string) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Storage(msg, err)
}
