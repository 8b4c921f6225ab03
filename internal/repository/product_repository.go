package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"chatmart/internal/domain"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// sortableProductFields is the whitelist of columns exposed for catalog
// sorting. Anything else falls back to the default catalog order.
var sortableProductFields = map[string]string{
	"name":           "name",
	"price":          "price",
	"created_at":     "created_at",
	"stock_quantity": "stock_quantity",
	"sort_order":     "sort_order",
	"views_count":    "views_count",
	"orders_count":   "orders_count",
}

const productColumns = `id, name, description, price, image_url, detail_url,
	stock_quantity, is_available, is_hidden, category, sort_order, tags,
	min_order_quantity, max_order_quantity, views_count, orders_count,
	created_at, updated_at`

// ProductRepository defines the data access surface for the catalog and the
// inventory ledger. All stock mutations are transactional and preserve the
// non-negative stock invariant.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	SoftDelete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter *domain.ProductFilter, includeHidden bool) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Featured(ctx context.Context, limit int) ([]*domain.Product, error)
	LowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
	IncrementViews(ctx context.Context, id int64) error

	ReserveStock(ctx context.Context, productID int64, quantity int) (*domain.Product, error)
	RestoreStock(ctx context.Context, productID int64, quantity int) error
	BulkReserveStock(ctx context.Context, items []domain.StockRequest) ([]*domain.Product, error)
	BulkRestoreStock(ctx context.Context, items []domain.StockRequest) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.ImageURL,
		&product.DetailURL,
		&product.StockQuantity,
		&product.IsAvailable,
		&product.IsHidden,
		&product.Category,
		&product.SortOrder,
		&product.Tags,
		&product.MinOrderQuantity,
		&product.MaxOrderQuantity,
		&product.ViewsCount,
		&product.OrdersCount,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product and fills in the generated id and timestamps
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, description, price, image_url, detail_url,
			stock_quantity, is_available, is_hidden, category, sort_order, tags,
			min_order_quantity, max_order_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, views_count, orders_count, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Description,
		product.Price,
		product.ImageURL,
		product.DetailURL,
		product.StockQuantity,
		product.IsAvailable,
		product.IsHidden,
		product.Category,
		product.SortOrder,
		product.Tags,
		product.MinOrderQuantity,
		product.MaxOrderQuantity,
	).Scan(&product.ID, &product.ViewsCount, &product.OrdersCount, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update writes all mutable product fields
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, image_url = $5,
		    detail_url = $6, stock_quantity = $7, is_available = $8,
		    is_hidden = $9, category = $10, sort_order = $11, tags = $12,
		    min_order_quantity = $13, max_order_quantity = $14
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.ImageURL,
		product.DetailURL,
		product.StockQuantity,
		product.IsAvailable,
		product.IsHidden,
		product.Category,
		product.SortOrder,
		product.Tags,
		product.MinOrderQuantity,
		product.MaxOrderQuantity,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// SoftDelete retires a product from sale without removing the row, so
// historical order lines keep a valid reference
func (r *productRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE products SET is_available = FALSE, is_hidden = TRUE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves a filtered, sorted, paginated slice of the catalog plus the
// total row count for the same filter
func (r *productRepository) List(ctx context.Context, filter *domain.ProductFilter, includeHidden bool) ([]*domain.Product, int, error) {
	where := []string{}
	args := []interface{}{}
	argIndex := 1

	appendClause := func(clause string, value interface{}) {
		where = append(where, fmt.Sprintf(clause, argIndex))
		args = append(args, value)
		argIndex++
	}

	// Hidden products never leak into public listings
	if !includeHidden {
		where = append(where, "is_hidden = FALSE")
	}

	if filter != nil {
		if filter.Category != nil {
			appendClause("category = $%d", *filter.Category)
		}
		if filter.IsAvailable != nil {
			appendClause("is_available = $%d", *filter.IsAvailable)
		}
		if includeHidden && filter.IsHidden != nil {
			appendClause("is_hidden = $%d", *filter.IsHidden)
		}
		if filter.InStock != nil {
			if *filter.InStock {
				where = append(where, "stock_quantity > 0")
			} else {
				where = append(where, "stock_quantity <= 0")
			}
		}
		if filter.MinPrice != nil {
			appendClause("price >= $%d", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			appendClause("price <= $%d", *filter.MaxPrice)
		}
		if filter.Search != "" {
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, fmt.Sprintf(
				"(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(tags) LIKE $%d)",
				argIndex, argIndex, argIndex))
			args = append(args, pattern)
			argIndex++
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// Count total products matching the filter
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	orderClause := "ORDER BY sort_order ASC, created_at DESC"
	if filter != nil && filter.SortBy != "" {
		if column, ok := sortableProductFields[filter.SortBy]; ok {
			direction := SortOrderAsc
			if filter.SortDesc {
				direction = SortOrderDesc
			}
			orderClause = fmt.Sprintf("ORDER BY %s %s", column, direction)
		}
	}

	page, perPage := 1, 20
	if filter != nil {
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PerPage > 0 {
			perPage = filter.PerPage
		}
	}
	offset := (page - 1) * perPage

	query := fmt.Sprintf(`SELECT `+productColumns+` FROM products %s %s LIMIT $%d OFFSET $%d`,
		whereClause, orderClause, argIndex, argIndex+1)
	args = append(args, perPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// Search matches the query case-insensitively against name, description and
// tags of available, visible products, ordered by catalog sort order
func (r *productRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Product, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	searchQuery := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_available = TRUE AND is_hidden = FALSE
		  AND (LOWER(name) LIKE $1 OR LOWER(description) LIKE $1 OR LOWER(tags) LIKE $1)
		ORDER BY sort_order ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, searchQuery, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// Categories returns the distinct non-null categories among visible products
func (r *productRepository) Categories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category FROM products
		WHERE category IS NOT NULL AND is_hidden = FALSE
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// Featured ranks purchasable products by popularity: orders weigh ten times
// a view, newest first on ties
func (r *productRepository) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_available = TRUE AND is_hidden = FALSE AND stock_quantity > 0
		ORDER BY (views_count + orders_count * 10) DESC, created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list featured products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// LowStock returns purchasable products whose stock fell below the threshold,
// scarcest first
func (r *productRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_available = TRUE AND is_hidden = FALSE
		  AND stock_quantity > 0 AND stock_quantity < $1
		ORDER BY stock_quantity ASC
	`

	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// IncrementViews bumps the product view counter
func (r *productRepository) IncrementViews(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET views_count = views_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// ReserveStock atomically decrements stock for an order. The row is locked
// for the duration of the check-then-decrement so concurrent reservations
// serialize and cannot oversell. Returns the product as it looks after the
// decrement so callers can react to low-stock crossings.
func (r *productRepository) ReserveStock(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var reserved *domain.Product
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		product, err := findProductForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}

		if err := checkReservation(product, quantity); err != nil {
			return err
		}

		if err := applyReservation(ctx, tx, product, quantity); err != nil {
			return err
		}

		reserved = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reserved, nil
}

// RestoreStock adds quantity back to the product's stock, the compensating
// action for a cancelled order. Restores are additive and unbounded.
func (r *productRepository) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $2 WHERE id = $1`,
		productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// BulkReserveStock reserves every item or nothing. All rows are locked in
// ascending product-id order before any validation, so two overlapping bulk
// reservations cannot deadlock and cannot both pass the availability check.
func (r *productRepository) BulkReserveStock(ctx context.Context, items []domain.StockRequest) ([]*domain.Product, error) {
	merged, err := mergeStockRequests(items)
	if err != nil {
		return nil, err
	}

	var reserved []*domain.Product
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		reserved = reserved[:0]

		// Lock phase: stable order avoids deadlock between overlapping batches
		products := make([]*domain.Product, 0, len(merged))
		for _, item := range merged {
			product, err := findProductForUpdate(ctx, tx, item.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			products = append(products, product)
		}

		// Validate phase: the whole batch is rejected on the first failure
		for i, item := range merged {
			if err := checkReservation(products[i], item.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
		}

		// Mutate phase: only reached when every item validated
		for i, item := range merged {
			if err := applyReservation(ctx, tx, products[i], item.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			reserved = append(reserved, products[i])
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reserved, nil
}

// BulkRestoreStock restores each item independently, best effort: a missing
// product does not stop the remaining restores
func (r *productRepository) BulkRestoreStock(ctx context.Context, items []domain.StockRequest) error {
	var errs []error
	for _, item := range items {
		if err := r.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("product %d: %w", item.ProductID, err))
		}
	}
	return joinErrors(errs)
}

// findProductForUpdate loads a product row under a row-level lock
func findProductForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return product, nil
}

// checkReservation validates a reservation against a locked product row.
// Order-limit violations take precedence over raw stock shortage.
func checkReservation(product *domain.Product, quantity int) error {
	if !product.IsPurchasable() {
		return ErrProductUnpurchasable
	}
	if quantity < product.MinOrderQuantity {
		return ErrInvalidQuantity
	}
	if product.MaxOrderQuantity != nil && quantity > *product.MaxOrderQuantity {
		return ErrInvalidQuantity
	}
	if quantity > product.StockQuantity {
		return ErrInsufficientStock
	}
	return nil
}

// applyReservation decrements stock and bumps the order counter on a locked
// row, updating the in-memory product to the post-decrement state
func applyReservation(ctx context.Context, tx *sql.Tx, product *domain.Product, quantity int) error {
	err := tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, orders_count = orders_count + 1
		WHERE id = $1
		RETURNING stock_quantity, orders_count, updated_at
	`, product.ID, quantity).Scan(&product.StockQuantity, &product.OrdersCount, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	return nil
}

// mergeStockRequests combines duplicate product ids and sorts the batch by
// product id so locks are always taken in the same order
func mergeStockRequests(items []domain.StockRequest) ([]domain.StockRequest, error) {
	byProduct := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
		byProduct[item.ProductID] += item.Quantity
	}

	merged := make([]domain.StockRequest, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, domain.StockRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })

	return merged, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Errorf("bulk restore: %s", strings.Join(messages, "; "))
}
