package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chatmart/internal/domain"
	"chatmart/internal/middleware"
	"chatmart/internal/service"
)

var errInvalidPriceFilter = errors.New("invalid price filter")

// CreateProductRequest represents the product creation payload
type CreateProductRequest struct {
	Name             string  `json:"name" validate:"required,max=200"`
	Description      string  `json:"description"`
	Price            string  `json:"price" validate:"required"`
	ImageURL         string  `json:"image_url"`
	DetailURL        string  `json:"detail_url"`
	StockQuantity    int     `json:"stock_quantity" validate:"gte=0"`
	IsAvailable      *bool   `json:"is_available"`
	IsHidden         bool    `json:"is_hidden"`
	Category         *string `json:"category"`
	SortOrder        int     `json:"sort_order"`
	Tags             string  `json:"tags"`
	MinOrderQuantity int     `json:"min_order_quantity"`
	MaxOrderQuantity *int    `json:"max_order_quantity"`
}

// UpdateProductRequest represents a partial product update payload
type UpdateProductRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	Price            *string `json:"price"`
	ImageURL         *string `json:"image_url"`
	DetailURL        *string `json:"detail_url"`
	StockQuantity    *int    `json:"stock_quantity"`
	IsAvailable      *bool   `json:"is_available"`
	IsHidden         *bool   `json:"is_hidden"`
	Category         *string `json:"category"`
	SortOrder        *int    `json:"sort_order"`
	Tags             *string `json:"tags"`
	MinOrderQuantity *int    `json:"min_order_quantity"`
	MaxOrderQuantity *int    `json:"max_order_quantity"`
}

// ReserveStockRequest represents a single stock reservation payload
type ReserveStockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// BulkStockRequest represents a bulk reserve or restore payload
type BulkStockRequest struct {
	Items []domain.StockRequest `json:"items" validate:"required,min=1,dive"`
}

// ProductHandler handles HTTP requests for the catalog and inventory
type ProductHandler struct {
	catalogService   service.CatalogService
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(
	catalogService service.CatalogService,
	inventoryService service.InventoryService,
	logger *zap.Logger,
) *ProductHandler {
	return &ProductHandler{
		catalogService:   catalogService,
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers catalog and inventory routes. Admin routes are
// mounted behind the admin middleware supplied by the server.
func (h *ProductHandler) RegisterRoutes(r chi.Router, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/featured", h.ListFeatured)
		r.Get("/{id}", h.GetProduct)
		r.Get("/{id}/availability", h.CheckAvailability)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Get("/all", h.ListAllProducts)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})

	r.Route("/api/inventory", func(r chi.Router) {
		r.Use(adminMiddleware)
		r.Post("/{id}/reserve", h.ReserveStock)
		r.Post("/{id}/restore", h.RestoreStock)
		r.Post("/reserve", h.BulkReserveStock)
		r.Post("/restore", h.BulkRestoreStock)
		r.Get("/low-stock", h.LowStockReport)
	})
}

// ListProducts handles the public catalog listing
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// ListAllProducts handles the admin catalog listing, hidden products included
func (h *ProductHandler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.catalogService.ListAllProducts(r.Context(), filter)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct handles a single product lookup and counts the view
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id, true)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// SearchProducts handles catalog search
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	products, err := h.catalogService.SearchProducts(r.Context(), query, limit)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// ListCategories handles the category listing
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.Categories(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// ListFeatured handles the featured products listing
func (h *ProductHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	products, err := h.catalogService.FeaturedProducts(r.Context(), limit)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// CheckAvailability handles the pre-checkout stock probe
func (h *ProductHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity <= 0 {
		quantity = 1
	}

	availability, err := h.inventoryService.CheckAvailability(r.Context(), id, quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, availability)
}

// CreateProduct handles product creation
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}
	minOrderQty := req.MinOrderQuantity
	if minOrderQty < 1 {
		minOrderQty = 1
	}

	product := &domain.Product{
		Name:             req.Name,
		Description:      req.Description,
		Price:            price,
		ImageURL:         req.ImageURL,
		DetailURL:        req.DetailURL,
		StockQuantity:    req.StockQuantity,
		IsAvailable:      isAvailable,
		IsHidden:         req.IsHidden,
		Category:         req.Category,
		SortOrder:        req.SortOrder,
		Tags:             req.Tags,
		MinOrderQuantity: minOrderQty,
		MaxOrderQuantity: req.MaxOrderQuantity,
	}

	if err := h.catalogService.CreateProduct(r.Context(), product); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles a partial product update
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := &domain.ProductUpdate{
		Name:             req.Name,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		DetailURL:        req.DetailURL,
		StockQuantity:    req.StockQuantity,
		IsAvailable:      req.IsAvailable,
		IsHidden:         req.IsHidden,
		Category:         req.Category,
		SortOrder:        req.SortOrder,
		Tags:             req.Tags,
		MinOrderQuantity: req.MinOrderQuantity,
		MaxOrderQuantity: req.MaxOrderQuantity,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
			return
		}
		update.Price = &price
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), id, update)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles product retirement
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReserveStock handles a single-product stock reservation
func (h *ProductHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req ReserveStockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.inventoryService.Reserve(r.Context(), id, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// RestoreStock handles a single-product stock restore
func (h *ProductHandler) RestoreStock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req ReserveStockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.inventoryService.Restore(r.Context(), id, req.Quantity); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkReserveStock handles an all-or-nothing multi-product reservation
func (h *ProductHandler) BulkReserveStock(w http.ResponseWriter, r *http.Request) {
	var req BulkStockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	products, err := h.inventoryService.BulkReserve(r.Context(), req.Items)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// BulkRestoreStock handles a best-effort multi-product restore
func (h *ProductHandler) BulkRestoreStock(w http.ResponseWriter, r *http.Request) {
	var req BulkStockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.inventoryService.BulkRestore(r.Context(), req.Items); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LowStockReport handles the reorder report. An optional threshold query
// parameter overrides the configured default.
func (h *ProductHandler) LowStockReport(w http.ResponseWriter, r *http.Request) {
	threshold := 0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = parsed
	}

	products, err := h.inventoryService.LowStockReport(r.Context(), threshold)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// parseIDParam extracts a positive int64 URL parameter
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}

// parseProductFilter builds a catalog filter from query parameters
func parseProductFilter(r *http.Request) (*domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := &domain.ProductFilter{
		Search:   q.Get("search"),
		SortBy:   q.Get("sort_by"),
		SortDesc: q.Get("sort_dir") == "desc",
	}

	if v := q.Get("category"); v != "" {
		filter.Category = &v
	}
	if v := q.Get("available"); v != "" {
		b := v == "true"
		filter.IsAvailable = &b
	}
	if v := q.Get("hidden"); v != "" {
		b := v == "true"
		filter.IsHidden = &b
	}
	if v := q.Get("in_stock"); v != "" {
		b := v == "true"
		filter.InStock = &b
	}
	if v := q.Get("min_price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errInvalidPriceFilter
		}
		filter.MinPrice = &price
	}
	if v := q.Get("max_price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errInvalidPriceFilter
		}
		filter.MaxPrice = &price
	}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("per_page"); v != "" {
		filter.PerPage, _ = strconv.Atoi(v)
	}

	return filter, nil
}
