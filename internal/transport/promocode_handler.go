package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chatmart/internal/domain"
	"chatmart/internal/middleware"
	"chatmart/internal/service"
)

// ValidatePromocodeRequest represents a promocode check payload
type ValidatePromocodeRequest struct {
	Code        string `json:"code" validate:"required"`
	OrderAmount string `json:"order_amount" validate:"required"`
}

// ApplyPromocodeRequest represents a promocode activation payload
type ApplyPromocodeRequest struct {
	Code        string `json:"code" validate:"required"`
	OrderAmount string `json:"order_amount" validate:"required"`
	OrderID     *int64 `json:"order_id"`
}

// PromocodeRequest represents the admin create/update payload
type PromocodeRequest struct {
	Code              string     `json:"code" validate:"required"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	DiscountPercent   int        `json:"discount_percent" validate:"required,gt=0,lte=100"`
	MinOrderAmount    *string    `json:"min_order_amount"`
	MaxDiscountAmount *string    `json:"max_discount_amount"`
	MaxUses           *int       `json:"max_uses"`
	OnePerUser        *bool      `json:"one_per_user"`
	ValidFrom         *time.Time `json:"valid_from"`
	ValidUntil        *time.Time `json:"valid_until"`
	IsActive          *bool      `json:"is_active"`
}

// SetActiveRequest represents the promocode kill-switch payload
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// DiscountResponse reports the priced outcome of a promocode operation
type DiscountResponse struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Promocode      interface{}     `json:"promocode,omitempty"`
}

// PromocodeHandler handles HTTP requests for promocode operations
type PromocodeHandler struct {
	promocodeService service.PromocodeService
	logger           *zap.Logger
}

// NewPromocodeHandler creates a new PromocodeHandler
func NewPromocodeHandler(promocodeService service.PromocodeService, logger *zap.Logger) *PromocodeHandler {
	return &PromocodeHandler{
		promocodeService: promocodeService,
		logger:           logger,
	}
}

// RegisterRoutes registers promocode routes. Validation and application are
// user-facing; management is admin only.
func (h *PromocodeHandler) RegisterRoutes(r chi.Router, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/promocodes", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.IdentityMiddleware)
			r.Post("/validate", h.ValidatePromocode)
			r.Post("/apply", h.ApplyPromocode)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Get("/", h.ListPromocodes)
			r.Post("/", h.CreatePromocode)
			r.Get("/{id}", h.GetPromocode)
			r.Put("/{id}", h.UpdatePromocode)
			r.Patch("/{id}/active", h.SetActive)
		})
	})
}

// ValidatePromocode checks a code against an order amount without consuming a use
func (h *PromocodeHandler) ValidatePromocode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req ValidatePromocodeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.OrderAmount)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order amount")
		return
	}

	discount, err := h.promocodeService.CalculateDiscount(r.Context(), req.Code, userID, amount)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DiscountResponse{
		Code:           req.Code,
		DiscountAmount: discount,
	})
}

// ApplyPromocode consumes one use of a code for an order
func (h *PromocodeHandler) ApplyPromocode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req ApplyPromocodeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.OrderAmount)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order amount")
		return
	}

	promocode, discount, err := h.promocodeService.Apply(r.Context(), req.Code, userID, req.OrderID, amount)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DiscountResponse{
		Code:           promocode.Code,
		DiscountAmount: discount,
		Promocode:      promocode,
	})
}

// ListPromocodes lists codes for the admin panel
func (h *PromocodeHandler) ListPromocodes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	promocodes, err := h.promocodeService.List(r.Context(), activeOnly)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"promocodes": promocodes})
}

// GetPromocode returns a single code by id
func (h *PromocodeHandler) GetPromocode(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid promocode id")
		return
	}

	promocode, err := h.promocodeService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, promocode)
}

// CreatePromocode creates a new code
func (h *PromocodeHandler) CreatePromocode(w http.ResponseWriter, r *http.Request) {
	promocode, ok := h.decodePromocode(w, r)
	if !ok {
		return
	}

	if err := h.promocodeService.Create(r.Context(), promocode); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, promocode)
}

// UpdatePromocode rewrites a code's terms
func (h *PromocodeHandler) UpdatePromocode(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid promocode id")
		return
	}

	promocode, ok := h.decodePromocode(w, r)
	if !ok {
		return
	}

	if err := h.promocodeService.Update(r.Context(), id, promocode); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, promocode)
}

// SetActive flips the manual kill switch
func (h *PromocodeHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid promocode id")
		return
	}

	var req SetActiveRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.promocodeService.SetActive(r.Context(), id, req.Active); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodePromocode parses and converts the admin payload into a domain promocode
func (h *PromocodeHandler) decodePromocode(w http.ResponseWriter, r *http.Request) (*domain.Promocode, bool) {
	var req PromocodeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	promocode := &domain.Promocode{
		Code:            req.Code,
		Name:            req.Name,
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		OnePerUser:      true,
		ValidFrom:       req.ValidFrom,
		ValidUntil:      req.ValidUntil,
		IsActive:        true,
	}
	if req.OnePerUser != nil {
		promocode.OnePerUser = *req.OnePerUser
	}
	if req.IsActive != nil {
		promocode.IsActive = *req.IsActive
	}
	if req.MinOrderAmount != nil {
		amount, err := decimal.NewFromString(*req.MinOrderAmount)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid minimum order amount")
			return nil, false
		}
		promocode.MinOrderAmount = &amount
	}
	if req.MaxDiscountAmount != nil {
		amount, err := decimal.NewFromString(*req.MaxDiscountAmount)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid maximum discount amount")
			return nil, false
		}
		promocode.MaxDiscountAmount = &amount
	}

	return promocode, true
}
