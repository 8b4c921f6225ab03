package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"chatmart/internal/domain"
)

func addCartLine(t *testing.T, repo CartRepository, userID, productID int64, quantity int, price string) *domain.CartItem {
	t.Helper()
	item := &domain.CartItem{
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		PriceAtAdd: decimal.RequireFromString(price),
	}
	if err := repo.Upsert(context.Background(), item); err != nil {
		t.Fatalf("failed to add cart line: %v", err)
	}
	return item
}

func TestCartRepository_Upsert(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	repo := NewCartRepository(testDB)

	product := createTestProduct(t, productRepo, nil)

	first := addCartLine(t, repo, 100, product.ID, 2, "499.00")
	if first.ID == 0 {
		t.Fatal("Upsert did not assign an id")
	}

	t.Run("merge keeps the original price snapshot", func(t *testing.T) {
		merged := addCartLine(t, repo, 100, product.ID, 3, "999.00")
		if merged.ID != first.ID {
			t.Errorf("merge created a new line: id %d vs %d", merged.ID, first.ID)
		}
		if merged.Quantity != 5 {
			t.Errorf("quantity = %d, want 5", merged.Quantity)
		}
		if !merged.PriceAtAdd.Equal(decimal.RequireFromString("499.00")) {
			t.Errorf("price snapshot = %s, want the original 499.00", merged.PriceAtAdd)
		}
	})

	t.Run("other users get their own line", func(t *testing.T) {
		other := addCartLine(t, repo, 200, product.ID, 1, "499.00")
		if other.ID == first.ID {
			t.Error("lines of different users collided")
		}
	})
}

func TestCartRepository_FindByUser(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	repo := NewCartRepository(testDB)
	ctx := context.Background()

	mug := createTestProduct(t, productRepo, func(p *domain.Product) { p.Name = "Mug" })
	cup := createTestProduct(t, productRepo, func(p *domain.Product) { p.Name = "Cup" })

	addCartLine(t, repo, 100, mug.ID, 2, "499.00")
	addCartLine(t, repo, 100, cup.ID, 1, "499.00")
	addCartLine(t, repo, 200, mug.ID, 7, "499.00")

	items, err := repo.FindByUser(ctx, 100)
	if err != nil {
		t.Fatalf("FindByUser() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	// joined product rows come back with each line
	for _, item := range items {
		if item.Product == nil {
			t.Fatalf("line %d has no joined product", item.ID)
		}
	}
	if items[0].Product.Name != "Mug" || items[1].Product.Name != "Cup" {
		t.Errorf("lines not in insertion order: %q, %q", items[0].Product.Name, items[1].Product.Name)
	}

	count, err := repo.CountByUser(ctx, 100)
	if err != nil {
		t.Fatalf("CountByUser() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestCartRepository_UpdateAndRemove(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	repo := NewCartRepository(testDB)
	ctx := context.Background()

	product := createTestProduct(t, productRepo, nil)
	addCartLine(t, repo, 100, product.ID, 2, "499.00")

	t.Run("update quantity", func(t *testing.T) {
		if err := repo.UpdateQuantity(ctx, 100, product.ID, 9); err != nil {
			t.Fatalf("UpdateQuantity() error = %v", err)
		}
		item, err := repo.FindItem(ctx, 100, product.ID)
		if err != nil {
			t.Fatalf("FindItem() error = %v", err)
		}
		if item.Quantity != 9 {
			t.Errorf("quantity = %d, want 9", item.Quantity)
		}
	})

	t.Run("update of a missing line", func(t *testing.T) {
		if err := repo.UpdateQuantity(ctx, 300, product.ID, 1); !errors.Is(err, ErrCartItemNotFound) {
			t.Errorf("error = %v, want ErrCartItemNotFound", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := repo.Remove(ctx, 100, product.ID); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := repo.FindItem(ctx, 100, product.ID); !errors.Is(err, ErrCartItemNotFound) {
			t.Errorf("error = %v, want ErrCartItemNotFound", err)
		}
		if err := repo.Remove(ctx, 100, product.ID); !errors.Is(err, ErrCartItemNotFound) {
			t.Errorf("second remove error = %v, want ErrCartItemNotFound", err)
		}
	})
}

func TestCartRepository_Clear(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	repo := NewCartRepository(testDB)
	ctx := context.Background()

	product := createTestProduct(t, productRepo, nil)
	addCartLine(t, repo, 100, product.ID, 2, "499.00")

	if err := repo.Clear(ctx, 100); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	count, _ := repo.CountByUser(ctx, 100)
	if count != 0 {
		t.Errorf("count after clear = %d", count)
	}

	// clearing an already-empty cart is not an error
	if err := repo.Clear(ctx, 100); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestCartRepository_ProductDeletionCascades(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	repo := NewCartRepository(testDB)
	ctx := context.Background()

	product := createTestProduct(t, productRepo, nil)
	addCartLine(t, repo, 100, product.ID, 2, "499.00")

	// soft delete keeps the row, so cart lines survive too
	if err := productRepo.SoftDelete(ctx, product.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	item, err := repo.FindItem(ctx, 100, product.ID)
	if err != nil {
		t.Fatalf("FindItem() after soft delete error = %v", err)
	}
	if item.Product == nil || item.Product.IsAvailable {
		t.Error("joined product should be retired, not gone")
	}
}
