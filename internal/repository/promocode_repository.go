package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chatmart/internal/domain"
)

const promocodeColumns = `id, code, name, description, discount_percent,
	min_order_amount, max_discount_amount, max_uses, current_uses, one_per_user,
	valid_from, valid_until, status, is_active, created_at, updated_at`

// PromocodeRepository persists discount codes and their usage audit trail.
// Apply is the only way CurrentUses moves; it runs in a transaction and
// relies on the usage table's uniqueness to enforce one-per-user codes.
type PromocodeRepository interface {
	Create(ctx context.Context, promocode *domain.Promocode) error
	Update(ctx context.Context, promocode *domain.Promocode) error
	SetActive(ctx context.Context, id int64, active bool) error
	FindByID(ctx context.Context, id int64) (*domain.Promocode, error)
	FindByCode(ctx context.Context, code string) (*domain.Promocode, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Promocode, error)
	HasUserUsed(ctx context.Context, promocodeID, userID int64) (bool, error)
	Apply(ctx context.Context, code string, userID int64, orderID *int64, orderAmount decimal.Decimal) (*domain.Promocode, decimal.Decimal, error)
	Usages(ctx context.Context, promocodeID int64) ([]*domain.PromocodeUsage, error)
}

type promocodeRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPromocodeRepository creates a new instance of PromocodeRepository
func NewPromocodeRepository(db *sql.DB) PromocodeRepository {
	return &promocodeRepository{db: db, now: time.Now}
}

func scanPromocode(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Promocode, error) {
	promocode := &domain.Promocode{}
	err := row.Scan(
		&promocode.ID,
		&promocode.Code,
		&promocode.Name,
		&promocode.Description,
		&promocode.DiscountPercent,
		&promocode.MinOrderAmount,
		&promocode.MaxDiscountAmount,
		&promocode.MaxUses,
		&promocode.CurrentUses,
		&promocode.OnePerUser,
		&promocode.ValidFrom,
		&promocode.ValidUntil,
		&promocode.Status,
		&promocode.IsActive,
		&promocode.CreatedAt,
		&promocode.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return promocode, nil
}

// Create inserts a new promocode. Codes are stored upper-cased so lookups
// are case-insensitive.
func (r *promocodeRepository) Create(ctx context.Context, promocode *domain.Promocode) error {
	query := `
		INSERT INTO promocodes (code, name, description, discount_percent,
			min_order_amount, max_discount_amount, max_uses, one_per_user,
			valid_from, valid_until, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, current_uses, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		strings.ToUpper(promocode.Code),
		promocode.Name,
		promocode.Description,
		promocode.DiscountPercent,
		promocode.MinOrderAmount,
		promocode.MaxDiscountAmount,
		promocode.MaxUses,
		promocode.OnePerUser,
		promocode.ValidFrom,
		promocode.ValidUntil,
		promocode.Status,
		promocode.IsActive,
	).Scan(&promocode.ID, &promocode.CurrentUses, &promocode.CreatedAt, &promocode.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create promocode: %w", err)
	}

	promocode.Code = strings.ToUpper(promocode.Code)
	return nil
}

// Update writes the mutable promocode fields. The code itself and the usage
// counter are immutable through this path.
func (r *promocodeRepository) Update(ctx context.Context, promocode *domain.Promocode) error {
	query := `
		UPDATE promocodes
		SET name = $2, description = $3, discount_percent = $4,
		    min_order_amount = $5, max_discount_amount = $6, max_uses = $7,
		    one_per_user = $8, valid_from = $9, valid_until = $10,
		    status = $11, is_active = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		promocode.ID,
		promocode.Name,
		promocode.Description,
		promocode.DiscountPercent,
		promocode.MinOrderAmount,
		promocode.MaxDiscountAmount,
		promocode.MaxUses,
		promocode.OnePerUser,
		promocode.ValidFrom,
		promocode.ValidUntil,
		promocode.Status,
		promocode.IsActive,
	)

	if err != nil {
		return fmt.Errorf("failed to update promocode: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrPromocodeNotFound
	}

	return nil
}

// SetActive toggles the kill switch and refreshes the cached status
func (r *promocodeRepository) SetActive(ctx context.Context, id int64, active bool) error {
	status := domain.PromocodeStatusActive
	if !active {
		status = domain.PromocodeStatusInactive
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE promocodes SET is_active = $2, status = $3 WHERE id = $1`,
		id, active, status)
	if err != nil {
		return fmt.Errorf("failed to set promocode active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrPromocodeNotFound
	}

	return nil
}

// FindByID retrieves a promocode by ID
func (r *promocodeRepository) FindByID(ctx context.Context, id int64) (*domain.Promocode, error) {
	query := `SELECT ` + promocodeColumns + ` FROM promocodes WHERE id = $1`

	promocode, err := scanPromocode(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPromocodeNotFound
		}
		return nil, fmt.Errorf("failed to find promocode by ID: %w", err)
	}

	return promocode, nil
}

// FindByCode retrieves a promocode by its code, case-insensitively
func (r *promocodeRepository) FindByCode(ctx context.Context, code string) (*domain.Promocode, error) {
	query := `SELECT ` + promocodeColumns + ` FROM promocodes WHERE code = $1`

	promocode, err := scanPromocode(r.db.QueryRowContext(ctx, query, strings.ToUpper(code)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPromocodeNotFound
		}
		return nil, fmt.Errorf("failed to find promocode by code: %w", err)
	}

	return promocode, nil
}

// List returns all promocodes, newest first, optionally filtered to active ones
func (r *promocodeRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Promocode, error) {
	query := `SELECT ` + promocodeColumns + ` FROM promocodes`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list promocodes: %w", err)
	}
	defer rows.Close()

	promocodes := []*domain.Promocode{}
	for rows.Next() {
		promocode, err := scanPromocode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promocode: %w", err)
		}
		promocodes = append(promocodes, promocode)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promocodes: %w", err)
	}

	return promocodes, nil
}

// HasUserUsed reports whether the user has at least one usage of the promocode
func (r *promocodeRepository) HasUserUsed(ctx context.Context, promocodeID, userID int64) (bool, error) {
	var used bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM promocode_usages WHERE promocode_id = $1 AND user_id = $2)`,
		promocodeID, userID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check promocode usage: %w", err)
	}
	return used, nil
}

// Apply activates the promocode for an order: it locks the code row,
// re-validates under the lock, records the usage and bumps the counter.
// One-per-user enforcement rides on the usage table's unique index rather
// than a racy pre-check; a duplicate surfaces as ErrPromocodeAlreadyUsed.
func (r *promocodeRepository) Apply(ctx context.Context, code string, userID int64, orderID *int64, orderAmount decimal.Decimal) (*domain.Promocode, decimal.Decimal, error) {
	var (
		applied  *domain.Promocode
		discount decimal.Decimal
	)

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `SELECT ` + promocodeColumns + ` FROM promocodes WHERE code = $1 FOR UPDATE`
		promocode, err := scanPromocode(tx.QueryRowContext(ctx, query, strings.ToUpper(code)))
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrPromocodeNotFound
			}
			return fmt.Errorf("failed to lock promocode: %w", err)
		}

		now := r.now()
		switch promocode.EffectiveStatus(now) {
		case domain.PromocodeStatusInactive:
			return ErrPromocodeInactive
		case domain.PromocodeStatusExpired:
			return ErrPromocodeExpired
		case domain.PromocodeStatusExhausted:
			return ErrPromocodeExhausted
		}

		if promocode.MinOrderAmount != nil && orderAmount.LessThan(*promocode.MinOrderAmount) {
			return ErrPromocodeBelowMinimum
		}

		discount = promocode.CalculateDiscount(orderAmount, now)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO promocode_usages (promocode_id, user_id, order_id, order_amount, discount_amount, single_use)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, promocode.ID, userID, orderID, orderAmount, discount, promocode.OnePerUser)
		if err != nil {
			if isUniqueViolation(err, "uq_promocode_user") {
				return ErrPromocodeAlreadyUsed
			}
			return fmt.Errorf("failed to record promocode usage: %w", err)
		}

		promocode.CurrentUses++
		status := promocode.EffectiveStatus(now)

		err = tx.QueryRowContext(ctx, `
			UPDATE promocodes SET current_uses = $2, status = $3
			WHERE id = $1
			RETURNING updated_at
		`, promocode.ID, promocode.CurrentUses, status).Scan(&promocode.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update promocode uses: %w", err)
		}

		promocode.Status = status
		applied = promocode
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	return applied, discount, nil
}

// Usages returns the audit trail of a promocode, newest first
func (r *promocodeRepository) Usages(ctx context.Context, promocodeID int64) ([]*domain.PromocodeUsage, error) {
	query := `
		SELECT id, promocode_id, user_id, order_id, order_amount, discount_amount, used_at
		FROM promocode_usages
		WHERE promocode_id = $1
		ORDER BY used_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, promocodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promocode usages: %w", err)
	}
	defer rows.Close()

	usages := []*domain.PromocodeUsage{}
	for rows.Next() {
		usage := &domain.PromocodeUsage{}
		err := rows.Scan(
			&usage.ID,
			&usage.PromocodeID,
			&usage.UserID,
			&usage.OrderID,
			&usage.OrderAmount,
			&usage.DiscountAmount,
			&usage.UsedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promocode usage: %w", err)
		}
		usages = append(usages, usage)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promocode usages: %w", err)
	}

	return usages, nil
}
