package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromocodeStatus is the cached lifecycle state of a promocode
type PromocodeStatus string

const (
	PromocodeStatusActive    PromocodeStatus = "active"
	PromocodeStatusInactive  PromocodeStatus = "inactive"
	PromocodeStatusExpired   PromocodeStatus = "expired"
	PromocodeStatusExhausted PromocodeStatus = "exhausted"
)

// Promocode is a percentage discount code with optional usage caps and
// a validity window. CurrentUses never exceeds MaxUses when the latter is set.
type Promocode struct {
	ID                int64            `json:"id" db:"id"`
	Code              string           `json:"code" db:"code"`
	Name              string           `json:"name" db:"name"`
	Description       string           `json:"description" db:"description"`
	DiscountPercent   int              `json:"discount_percent" db:"discount_percent"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount" db:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount" db:"max_discount_amount"`
	MaxUses           *int             `json:"max_uses" db:"max_uses"`
	CurrentUses       int              `json:"current_uses" db:"current_uses"`
	OnePerUser        bool             `json:"one_per_user" db:"one_per_user"`
	ValidFrom         *time.Time       `json:"valid_from" db:"valid_from"`
	ValidUntil        *time.Time       `json:"valid_until" db:"valid_until"`
	Status            PromocodeStatus  `json:"status" db:"status"`
	IsActive          bool             `json:"is_active" db:"is_active"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// RemainingUses returns how many activations remain, nil for unlimited codes
func (p *Promocode) RemainingUses() *int {
	if p.MaxUses == nil {
		return nil
	}
	remaining := *p.MaxUses - p.CurrentUses
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// IsExhausted reports whether the usage cap has been reached
func (p *Promocode) IsExhausted() bool {
	return p.MaxUses != nil && p.CurrentUses >= *p.MaxUses
}

// IsTimeValid reports whether now falls inside the validity window
func (p *Promocode) IsTimeValid(now time.Time) bool {
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	return true
}

// IsValid reports overall usability at the given instant. It derives from
// EffectiveStatus, never from the stored Status column: the cache can lag
// behind reality, e.g. a code whose validity window has opened since the
// status was last written.
func (p *Promocode) IsValid(now time.Time) bool {
	return p.EffectiveStatus(now) == PromocodeStatusActive
}

// EffectiveStatus recomputes the status from current conditions. The stored
// Status column is a cache of this value; EXHAUSTED is the only transition
// that must be written at the moment of the triggering use.
func (p *Promocode) EffectiveStatus(now time.Time) PromocodeStatus {
	switch {
	case !p.IsActive:
		return PromocodeStatusInactive
	case p.IsExhausted():
		return PromocodeStatusExhausted
	case !p.IsTimeValid(now):
		return PromocodeStatusExpired
	default:
		return PromocodeStatusActive
	}
}

// CanBeAppliedTo reports whether the code applies to an order of the given amount
func (p *Promocode) CanBeAppliedTo(orderAmount decimal.Decimal, now time.Time) bool {
	if !p.IsValid(now) {
		return false
	}
	if p.MinOrderAmount != nil && orderAmount.LessThan(*p.MinOrderAmount) {
		return false
	}
	return true
}

// CalculateDiscount returns the discount for an order amount: percent of the
// amount, capped at MaxDiscountAmount when set, zero when inapplicable.
func (p *Promocode) CalculateDiscount(orderAmount decimal.Decimal, now time.Time) decimal.Decimal {
	if !p.CanBeAppliedTo(orderAmount, now) {
		return decimal.Zero
	}
	discount := orderAmount.Mul(decimal.NewFromInt(int64(p.DiscountPercent))).Div(decimal.NewFromInt(100))
	if p.MaxDiscountAmount != nil && discount.GreaterThan(*p.MaxDiscountAmount) {
		discount = *p.MaxDiscountAmount
	}
	return discount
}

// PromocodeUsage is an append-only audit record of one activation. A unique
// (promocode_id, user_id) constraint enforces one-per-user codes.
type PromocodeUsage struct {
	ID             int64            `json:"id" db:"id"`
	PromocodeID    int64            `json:"promocode_id" db:"promocode_id"`
	UserID         int64            `json:"user_id" db:"user_id"`
	OrderID        *int64           `json:"order_id" db:"order_id"`
	OrderAmount    *decimal.Decimal `json:"order_amount" db:"order_amount"`
	DiscountAmount *decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	UsedAt         time.Time        `json:"used_at" db:"used_at"`
}
