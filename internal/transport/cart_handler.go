package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"chatmart/internal/middleware"
	"chatmart/internal/service"
)

// AddToCartRequest represents the add-to-cart payload
type AddToCartRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItemRequest represents a cart quantity change payload
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// CartHandler handles HTTP requests for cart operations. All routes operate
// on the cart of the user identified by the gateway header.
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers cart routes behind the identity middleware
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.IdentityMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.UpdateItem)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Delete("/", h.Clear)
		r.Get("/validate", h.Validate)
	})
}

// GetCart returns the cart with totals, optionally priced with a promocode
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	code := r.URL.Query().Get("promocode")

	cart, err := h.cartService.GetCartWithPromocode(r.Context(), userID, code)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// AddItem puts a product in the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.cartService.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, item)
}

// UpdateItem changes a cart line's quantity; zero removes the line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	productID, err := parseIDParam(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req UpdateCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.cartService.UpdateQuantity(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, item)
}

// RemoveItem deletes a cart line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	productID, err := parseIDParam(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.cartService.RemoveItem(r.Context(), userID, productID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	if err := h.cartService.Clear(r.Context(), userID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Validate checks the cart against live product state
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	validation, err := h.cartService.Validate(r.Context(), userID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, validation)
}
