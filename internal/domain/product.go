package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item. Price is a fixed-point decimal with
// two places; StockQuantity must never go negative.
type Product struct {
	ID               int64           `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Description      string          `json:"description" db:"description"`
	Price            decimal.Decimal `json:"price" db:"price"`
	ImageURL         string          `json:"image_url" db:"image_url"`
	DetailURL        string          `json:"detail_url" db:"detail_url"`
	StockQuantity    int             `json:"stock_quantity" db:"stock_quantity"`
	IsAvailable      bool            `json:"is_available" db:"is_available"`
	IsHidden         bool            `json:"is_hidden" db:"is_hidden"`
	Category         *string         `json:"category" db:"category"`
	SortOrder        int             `json:"sort_order" db:"sort_order"`
	Tags             string          `json:"tags" db:"tags"`
	MinOrderQuantity int             `json:"min_order_quantity" db:"min_order_quantity"`
	MaxOrderQuantity *int            `json:"max_order_quantity" db:"max_order_quantity"`
	ViewsCount       int             `json:"views_count" db:"views_count"`
	OrdersCount      int             `json:"orders_count" db:"orders_count"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsInStock reports whether the product has positive stock
func (p *Product) IsInStock() bool {
	return p.StockQuantity > 0
}

// IsLowStock reports whether the stock has fallen below the reorder
// threshold but is not yet sold out. A sold-out product is not low stock;
// it needs no reorder warning, it is already gone.
func (p *Product) IsLowStock(threshold int) bool {
	return p.StockQuantity > 0 && p.StockQuantity < threshold
}

// IsPurchasable reports whether the product can currently be ordered:
// available, not hidden, and in stock
func (p *Product) IsPurchasable() bool {
	return p.IsAvailable && !p.IsHidden && p.IsInStock()
}

// CanOrderQuantity reports whether the given quantity respects the
// product's order limits and current stock
func (p *Product) CanOrderQuantity(quantity int) bool {
	if !p.IsPurchasable() {
		return false
	}
	if quantity < p.MinOrderQuantity {
		return false
	}
	if p.MaxOrderQuantity != nil && quantity > *p.MaxOrderQuantity {
		return false
	}
	return quantity <= p.StockQuantity
}

// MaxAvailableQuantity returns the largest quantity that can be ordered
// right now, 0 when the product is not purchasable
func (p *Product) MaxAvailableQuantity() int {
	if !p.IsPurchasable() {
		return 0
	}
	maxQty := p.StockQuantity
	if p.MaxOrderQuantity != nil && *p.MaxOrderQuantity < maxQty {
		maxQty = *p.MaxOrderQuantity
	}
	if maxQty < 0 {
		return 0
	}
	return maxQty
}

// ProductUpdate carries a partial product update; nil fields are left unchanged
type ProductUpdate struct {
	Name             *string          `json:"name"`
	Description      *string          `json:"description"`
	Price            *decimal.Decimal `json:"price"`
	ImageURL         *string          `json:"image_url"`
	DetailURL        *string          `json:"detail_url"`
	StockQuantity    *int             `json:"stock_quantity"`
	IsAvailable      *bool            `json:"is_available"`
	IsHidden         *bool            `json:"is_hidden"`
	Category         *string          `json:"category"`
	SortOrder        *int             `json:"sort_order"`
	Tags             *string          `json:"tags"`
	MinOrderQuantity *int             `json:"min_order_quantity"`
	MaxOrderQuantity *int             `json:"max_order_quantity"`
}

// ProductFilter describes an AND-combined catalog query. All fields are
// optional; zero Page/PerPage fall back to defaults during validation.
type ProductFilter struct {
	Category    *string          `json:"category"`
	IsAvailable *bool            `json:"is_available"`
	IsHidden    *bool            `json:"is_hidden"`
	InStock     *bool            `json:"in_stock"`
	MinPrice    *decimal.Decimal `json:"min_price"`
	MaxPrice    *decimal.Decimal `json:"max_price"`
	Search      string           `json:"search"`
	SortBy      string           `json:"sort_by"`
	SortDesc    bool             `json:"sort_desc"`
	Page        int              `json:"page"`
	PerPage     int              `json:"per_page"`
}

// PageInfo carries pagination metadata for a catalog listing
type PageInfo struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPageInfo computes pagination metadata for a 1-indexed page over total rows
func NewPageInfo(page, perPage, total int) PageInfo {
	totalPages := (total + perPage - 1) / perPage
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ProductPage is a single page of a catalog listing
type ProductPage struct {
	Products   []*Product `json:"products"`
	Pagination PageInfo   `json:"pagination"`
}

// StockRequest identifies a product/quantity pair for reserve and restore operations
type StockRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// Availability is the result of a pre-checkout stock probe
type Availability struct {
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
	MaxQuantity int    `json:"max_quantity"`
}
