package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCartItem_Prices(t *testing.T) {
	item := CartItem{
		Quantity:   3,
		PriceAtAdd: decimal.RequireFromString("100.00"),
		Product:    &Product{Price: decimal.RequireFromString("120.00")},
	}

	if !item.CurrentUnitPrice().Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("CurrentUnitPrice() = %s, want 120.00", item.CurrentUnitPrice())
	}
	if !item.CurrentTotalPrice().Equal(decimal.RequireFromString("360.00")) {
		t.Errorf("CurrentTotalPrice() = %s, want 360.00", item.CurrentTotalPrice())
	}
	if !item.SnapshotTotalPrice().Equal(decimal.RequireFromString("300.00")) {
		t.Errorf("SnapshotTotalPrice() = %s, want 300.00", item.SnapshotTotalPrice())
	}
	if !item.PriceChanged() {
		t.Error("PriceChanged() should be true")
	}
}

func TestCartItem_PriceFallsBackToSnapshot(t *testing.T) {
	item := CartItem{
		Quantity:   2,
		PriceAtAdd: decimal.RequireFromString("50.00"),
	}

	if !item.CurrentUnitPrice().Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("CurrentUnitPrice() = %s, want snapshot 50.00", item.CurrentUnitPrice())
	}
	if item.PriceChanged() {
		t.Error("PriceChanged() should be false with no product row")
	}
}

func TestCartItem_IsAvailable(t *testing.T) {
	item := CartItem{Product: &Product{IsAvailable: true, StockQuantity: 1}}
	if !item.IsAvailable() {
		t.Error("item with purchasable product should be available")
	}

	item.Product.IsHidden = true
	if item.IsAvailable() {
		t.Error("item with hidden product should be unavailable")
	}

	item.Product = nil
	if item.IsAvailable() {
		t.Error("item without product row should be unavailable")
	}
}
