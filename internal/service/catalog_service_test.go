package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chatmart/internal/domain"
	"chatmart/internal/repository"
)

func newTestCatalogService(productRepo *mockProductRepository) CatalogService {
	return NewCatalogService(productRepo, zap.NewNop())
}

func seedProducts(repo *mockProductRepository, count int) {
	for i := 0; i < count; i++ {
		repo.add(&domain.Product{
			Name:        fmt.Sprintf("Product %03d", i),
			IsAvailable: true, StockQuantity: 10,
			Price: decimal.NewFromInt(int64(100 + i)),
		})
	}
}

func TestCatalogService_ListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("pages through the catalog", func(t *testing.T) {
		repo := newMockProductRepository()
		seedProducts(repo, 45)
		svc := newTestCatalogService(repo)

		page, err := svc.ListProducts(ctx, &domain.ProductFilter{Page: 1, PerPage: 20})
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if len(page.Products) != 20 {
			t.Errorf("page size = %d, want 20", len(page.Products))
		}
		if page.Pagination.Total != 45 {
			t.Errorf("total = %d, want 45", page.Pagination.Total)
		}
		if page.Pagination.TotalPages != 3 {
			t.Errorf("total pages = %d, want 3", page.Pagination.TotalPages)
		}

		last, err := svc.ListProducts(ctx, &domain.ProductFilter{Page: 3, PerPage: 20})
		if err != nil {
			t.Fatalf("ListProducts(page 3) error = %v", err)
		}
		if len(last.Products) != 5 {
			t.Errorf("last page size = %d, want 5", len(last.Products))
		}
		if last.Pagination.HasNext {
			t.Error("last page should have no next")
		}
	})

	t.Run("nil filter falls back to defaults", func(t *testing.T) {
		repo := newMockProductRepository()
		seedProducts(repo, 5)
		svc := newTestCatalogService(repo)

		page, err := svc.ListProducts(ctx, nil)
		if err != nil {
			t.Fatalf("ListProducts(nil) error = %v", err)
		}
		if page.Pagination.Page != 1 || page.Pagination.PerPage != 20 {
			t.Errorf("pagination = %+v, want page 1 per_page 20", page.Pagination)
		}
	})

	t.Run("per-page is clamped", func(t *testing.T) {
		repo := newMockProductRepository()
		seedProducts(repo, 5)
		svc := newTestCatalogService(repo)

		page, err := svc.ListProducts(ctx, &domain.ProductFilter{Page: 1, PerPage: 10_000})
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if page.Pagination.PerPage != 100 {
			t.Errorf("per_page = %d, want clamp to 100", page.Pagination.PerPage)
		}
	})

	t.Run("inverted price range is rejected", func(t *testing.T) {
		svc := newTestCatalogService(newMockProductRepository())

		low := decimal.RequireFromString("100")
		high := decimal.RequireFromString("50")
		_, err := svc.ListProducts(ctx, &domain.ProductFilter{MinPrice: &low, MaxPrice: &high})
		if !errors.Is(err, ErrInvalidPriceRange) {
			t.Errorf("error = %v, want ErrInvalidPriceRange", err)
		}
	})

	t.Run("hidden products stay out of public listings", func(t *testing.T) {
		repo := newMockProductRepository()
		repo.add(&domain.Product{Name: "Visible", IsAvailable: true, StockQuantity: 1})
		repo.add(&domain.Product{Name: "Hidden", IsAvailable: true, IsHidden: true, StockQuantity: 1})
		svc := newTestCatalogService(repo)

		page, err := svc.ListProducts(ctx, nil)
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if page.Pagination.Total != 1 {
			t.Errorf("public total = %d, want 1", page.Pagination.Total)
		}

		adminPage, err := svc.ListAllProducts(ctx, nil)
		if err != nil {
			t.Fatalf("ListAllProducts() error = %v", err)
		}
		if adminPage.Pagination.Total != 2 {
			t.Errorf("admin total = %d, want 2", adminPage.Pagination.Total)
		}
	})
}

func TestProperty_EveryCatalogRowAppearsOnExactlyOnePage(t *testing.T) {
	ctx := context.Background()
	properties := gopter.NewProperties(nil)

	properties.Property("paging the whole catalog yields each product once", prop.ForAll(
		func(total int, perPage int) bool {
			repo := newMockProductRepository()
			seedProducts(repo, total)
			svc := newTestCatalogService(repo)

			seen := map[int64]int{}
			page := 1
			for {
				result, err := svc.ListProducts(ctx, &domain.ProductFilter{Page: page, PerPage: perPage})
				if err != nil {
					return false
				}
				for _, p := range result.Products {
					seen[p.ID]++
				}
				if !result.Pagination.HasNext {
					break
				}
				page++
			}

			if len(seen) != total {
				return false
			}
			for _, count := range seen {
				if count != 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 120),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestCatalogService_GetProduct(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	product := repo.add(&domain.Product{Name: "Viewed", IsAvailable: true, StockQuantity: 1})
	svc := newTestCatalogService(repo)

	got, err := svc.GetProduct(ctx, product.ID, true)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if got.ViewsCount != 1 {
		t.Errorf("views = %d, want 1", got.ViewsCount)
	}

	if _, err := svc.GetProduct(ctx, product.ID, false); err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if repo.products[product.ID].ViewsCount != 1 {
		t.Errorf("views = %d, want still 1 without counting", repo.products[product.ID].ViewsCount)
	}
}

func TestCatalogService_SearchProducts(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	repo.add(&domain.Product{Name: "Ceramic Mug", IsAvailable: true, StockQuantity: 5})
	repo.add(&domain.Product{Name: "Steel Bottle", Tags: "mug,drinkware", IsAvailable: true, StockQuantity: 5})
	repo.add(&domain.Product{Name: "Hidden Mug", IsAvailable: true, IsHidden: true, StockQuantity: 5})
	svc := newTestCatalogService(repo)

	t.Run("matches name and tags, skips hidden", func(t *testing.T) {
		results, err := svc.SearchProducts(ctx, "mug", 0)
		if err != nil {
			t.Fatalf("SearchProducts() error = %v", err)
		}
		if len(results) != 2 {
			t.Errorf("results = %d, want 2", len(results))
		}
	})

	t.Run("blank query is rejected", func(t *testing.T) {
		_, err := svc.SearchProducts(ctx, "   ", 0)
		if !errors.Is(err, ErrEmptySearchQuery) {
			t.Errorf("error = %v, want ErrEmptySearchQuery", err)
		}
	})
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	product := repo.add(&domain.Product{
		Name: "Old Name", IsAvailable: true, StockQuantity: 10,
		Price: decimal.RequireFromString("100"),
	})
	svc := newTestCatalogService(repo)

	newName := "New Name"
	newPrice := decimal.RequireFromString("150")
	updated, err := svc.UpdateProduct(ctx, product.ID, &domain.ProductUpdate{
		Name:  &newName,
		Price: &newPrice,
	})
	if err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("name = %q, want New Name", updated.Name)
	}
	if !updated.Price.Equal(newPrice) {
		t.Errorf("price = %s, want 150", updated.Price)
	}
	if updated.StockQuantity != 10 {
		t.Errorf("stock = %d, want untouched 10", updated.StockQuantity)
	}

	t.Run("invalid update is rejected", func(t *testing.T) {
		empty := ""
		_, err := svc.UpdateProduct(ctx, product.ID, &domain.ProductUpdate{Name: &empty})
		if !errors.Is(err, ErrInvalidProduct) {
			t.Errorf("error = %v, want ErrInvalidProduct", err)
		}
	})
}

func TestCatalogService_DeleteProduct(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	product := repo.add(&domain.Product{Name: "Retiring", IsAvailable: true, StockQuantity: 10})
	svc := newTestCatalogService(repo)

	if err := svc.DeleteProduct(ctx, product.ID); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}

	stored := repo.products[product.ID]
	if stored.IsAvailable || !stored.IsHidden {
		t.Errorf("deleted product state = available %v hidden %v, want retired", stored.IsAvailable, stored.IsHidden)
	}

	if err := svc.DeleteProduct(ctx, 9999); !errors.Is(err, repository.ErrProductNotFound) {
		t.Errorf("error = %v, want ErrProductNotFound", err)
	}
}
