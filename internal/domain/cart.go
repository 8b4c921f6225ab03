package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one product in a user's cart. At most one row exists per
// (user, product) pair. PriceAtAdd is the price snapshot taken when the
// item entered the cart; the live product price stays authoritative.
type CartItem struct {
	ID         int64           `json:"id" db:"id"`
	UserID     int64           `json:"user_id" db:"user_id"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	PriceAtAdd decimal.Decimal `json:"price_at_add" db:"price_at_add"`
	AddedAt    time.Time       `json:"added_at" db:"added_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`

	// Product is the joined catalog row, populated on reads
	Product *Product `json:"product,omitempty"`
}

// CurrentUnitPrice returns the live product price, falling back to the
// snapshot when the product row is missing
func (ci *CartItem) CurrentUnitPrice() decimal.Decimal {
	if ci.Product != nil {
		return ci.Product.Price
	}
	return ci.PriceAtAdd
}

// CurrentTotalPrice is the line total at the live product price
func (ci *CartItem) CurrentTotalPrice() decimal.Decimal {
	return ci.CurrentUnitPrice().Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// SnapshotTotalPrice is the line total at the price captured on add
func (ci *CartItem) SnapshotTotalPrice() decimal.Decimal {
	return ci.PriceAtAdd.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// PriceChanged reports whether the product price moved since the item was added
func (ci *CartItem) PriceChanged() bool {
	return !ci.PriceAtAdd.Equal(ci.CurrentUnitPrice())
}

// IsAvailable reports whether the underlying product can still be ordered
func (ci *CartItem) IsAvailable() bool {
	return ci.Product != nil && ci.Product.IsPurchasable()
}

// MaxAvailableQuantity returns the current orderable maximum for the item's product
func (ci *CartItem) MaxAvailableQuantity() int {
	if ci.Product == nil {
		return 0
	}
	return ci.Product.MaxAvailableQuantity()
}

// CartTotals is the authoritative cost breakdown for a cart
type CartTotals struct {
	TotalItems     int             `json:"total_items"`
	TotalQuantity  int             `json:"total_quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCost   decimal.Decimal `json:"delivery_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	IsFreeDelivery bool            `json:"is_free_delivery"`
}

// Cart issue kinds raised by validation
const (
	CartIssueUnavailable  = "unavailable"
	CartIssueQuantity     = "quantity"
	CartIssuePriceChanged = "price_changed"
)

// CartIssue flags a problem with a single cart item
type CartIssue struct {
	ProductID   int64            `json:"product_id"`
	Issue       string           `json:"issue"`
	Message     string           `json:"message"`
	MaxQuantity *int             `json:"max_quantity,omitempty"`
	OldPrice    *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice    *decimal.Decimal `json:"new_price,omitempty"`
}

// CartValidation is the result of checking a cart against live product state.
// IsValid holds only when no issues of any kind were raised; price_changed
// items still appear in ValidItems.
type CartValidation struct {
	IsValid    bool        `json:"is_valid"`
	Issues     []CartIssue `json:"issues"`
	ValidItems []*CartItem `json:"valid_items"`
}
