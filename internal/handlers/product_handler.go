package handlers

import (
	"mime/multipart"
	"strconv"
	"strings"

	"adminpanel/internal/apperr"
	"adminpanel/internal/middleware"
	"adminpanel/internal/services"
	"adminpanel/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	productService *services.ProductService
	authService    *services.AuthService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService, authService *services.AuthService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		authService:    authService,
	}
}

// RegisterRoutes registers the product routes. Reads are public, writes
// require a bearer token.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.GetAllProducts)
	productRoutes.Get("/:id", h.GetProductByID)

	auth := middleware.AuthRequired(h.authService)
	productRoutes.Post("/", auth, h.CreateProduct)
	productRoutes.Put("/:id", auth, h.UpdateProduct)
	productRoutes.Delete("/:id", auth, h.DeleteProduct)
}

// GetAllProducts handles GET /products.
func (h *ProductHandler) GetAllProducts(c *fiber.Ctx) error {
	products, err := h.productService.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// GetProductByID handles GET /products/:id.
func (h *ProductHandler) GetProductByID(c *fiber.Ctx) error {
	product, err := h.productService.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// CreateProduct handles POST /products (multipart with an "image" file).
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	attrs, upload, closeUpload, err := parseProductRequest(c)
	if err != nil {
		return err
	}
	defer closeUpload()

	product, err := h.productService.Create(c.UserContext(), attrs, upload, middleware.PrincipalFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// UpdateProduct handles PUT /products/:id. Multipart when replacing the
// image, JSON otherwise.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	attrs, upload, closeUpload, err := parseProductRequest(c)
	if err != nil {
		return err
	}
	defer closeUpload()

	product, err := h.productService.Update(c.UserContext(), c.Params("id"), attrs, upload, middleware.PrincipalFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// DeleteProduct handles DELETE /products/:id.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.productService.Delete(c.UserContext(), id, middleware.PrincipalFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
		"id":      id,
	})
}

// productJSON is the JSON body accepted by PUT without an image.
type productJSON struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
	Featured    *bool            `json:"featured"`
}

func noop() {}

// parseProductRequest reads product fields and the optional image from a
// multipart form or a JSON body. The returned func closes the image file.
func parseProductRequest(c *fiber.Ctx) (services.ProductAttributes, *storage.Upload, func(), error) {
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return services.ProductAttributes{}, nil, noop, apperr.Validation("invalid multipart form", nil)
		}
		attrs, err := attributesFromForm(form)
		if err != nil {
			return services.ProductAttributes{}, nil, noop, err
		}
		files := form.File["image"]
		if len(files) == 0 {
			return attrs, nil, noop, nil
		}
		fh := files[0]
		file, err := fh.Open()
		if err != nil {
			return services.ProductAttributes{}, nil, noop, apperr.Validation("could not read image", map[string]string{"image": "unreadable file"})
		}
		upload := &storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Reader:      file,
		}
		return attrs, upload, func() { file.Close() }, nil

	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		var body productJSON
		if err := c.BodyParser(&body); err != nil {
			return services.ProductAttributes{}, nil, noop, apperr.Validation("invalid request body", nil)
		}
		return services.ProductAttributes(body), nil, noop, nil

	case len(c.Body()) == 0:
		return services.ProductAttributes{}, nil, noop, nil

	default:
		return services.ProductAttributes{}, nil, noop, apperr.Validation("content type must be multipart/form-data or application/json", nil)
	}
}

// attributesFromForm converts multipart text fields. Only fields present in
// the form are set.
func attributesFromForm(form *multipart.Form) (services.ProductAttributes, error) {
	var attrs services.ProductAttributes
	fields := make(map[string]string)

	value := func(key string) (string, bool) {
		values, ok := form.Value[key]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	}

	if v, ok := value("name"); ok {
		attrs.Name = &v
	}
	if v, ok := value("description"); ok {
		attrs.Description = &v
	}
	if v, ok := value("category"); ok {
		attrs.Category = &v
	}
	if v, ok := value("price"); ok {
		price, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			fields["price"] = "must be a number"
		} else {
			attrs.Price = &price
		}
	}
	if v, ok := value("stock"); ok {
		stock, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			fields["stock"] = "must be an integer"
		} else {
			attrs.Stock = &stock
		}
	}
	if v, ok := value("featured"); ok {
		featured, err := parseFormBool(v)
		if err != nil {
			fields["featured"] = "must be true or false"
		} else {
			attrs.Featured = &featured
		}
	}

	if len(fields) > 0 {
		return services.ProductAttributes{}, apperr.Validation("invalid product attributes", fields)
	}
	return attrs, nil
}

// parseFormBool accepts HTML checkbox values as well as strconv booleans.
func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true, nil
	case "", "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
