package repository

import (
	"context"
	"database/sql"
	"fmt"

	"chatmart/internal/domain"
)

const cartItemColumns = `ci.id, ci.user_id, ci.product_id, ci.quantity,
	ci.price_at_add, ci.added_at, ci.updated_at`

// CartRepository persists per-user cart lines. A user holds at most one line
// per product; adding the same product again merges into the existing line.
type CartRepository interface {
	Upsert(ctx context.Context, item *domain.CartItem) error
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
	FindByUser(ctx context.Context, userID int64) ([]*domain.CartItem, error)
	FindItem(ctx context.Context, userID, productID int64) (*domain.CartItem, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// Upsert inserts a cart line or, when the user already has one for the
// product, adds the quantity onto it. The price snapshot of the original
// line is kept on merge.
func (r *cartRepository) Upsert(ctx context.Context, item *domain.CartItem) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, price_at_add)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_cart_user_product
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity, price_at_add, added_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		item.UserID,
		item.ProductID,
		item.Quantity,
		item.PriceAtAdd,
	).Scan(&item.ID, &item.Quantity, &item.PriceAtAdd, &item.AddedAt, &item.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return nil
}

// UpdateQuantity replaces the quantity of an existing cart line
func (r *cartRepository) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	query := `
		UPDATE cart_items SET quantity = $3
		WHERE user_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// Remove deletes a single cart line
func (r *cartRepository) Remove(ctx context.Context, userID, productID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// Clear removes every cart line of the user. Clearing an empty cart is not
// an error.
func (r *cartRepository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// FindByUser loads the user's cart lines joined with the current product
// state, oldest line first. Lines whose product was hard-deleted are skipped
// by the join.
func (r *cartRepository) FindByUser(ctx context.Context, userID int64) ([]*domain.CartItem, error) {
	query := `
		SELECT ` + cartItemColumns + `, ` + prefixedProductColumns("p") + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// FindItem loads a single cart line with its product
func (r *cartRepository) FindItem(ctx context.Context, userID, productID int64) (*domain.CartItem, error) {
	query := `
		SELECT ` + cartItemColumns + `, ` + prefixedProductColumns("p") + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND ci.product_id = $2
	`

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, userID, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	return item, nil
}

// CountByUser returns the number of distinct cart lines of the user
func (r *cartRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cart_items WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return count, nil
}

func scanCartItem(row interface {
	Scan(dest ...interface{}) error
}) (*domain.CartItem, error) {
	item := &domain.CartItem{Product: &domain.Product{}}
	p := item.Product
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.PriceAtAdd,
		&item.AddedAt,
		&item.UpdatedAt,
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.DetailURL,
		&p.StockQuantity,
		&p.IsAvailable,
		&p.IsHidden,
		&p.Category,
		&p.SortOrder,
		&p.Tags,
		&p.MinOrderQuantity,
		&p.MaxOrderQuantity,
		&p.ViewsCount,
		&p.OrdersCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// prefixedProductColumns qualifies the product column list with a table alias
// for join queries
func prefixedProductColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.description, ` +
		alias + `.price, ` + alias + `.image_url, ` + alias + `.detail_url, ` +
		alias + `.stock_quantity, ` + alias + `.is_available, ` + alias + `.is_hidden, ` +
		alias + `.category, ` + alias + `.sort_order, ` + alias + `.tags, ` +
		alias + `.min_order_quantity, ` + alias + `.max_order_quantity, ` +
		alias + `.views_count, ` + alias + `.orders_count, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
