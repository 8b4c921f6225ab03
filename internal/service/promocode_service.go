package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chatmart/internal/config"
	"chatmart/internal/domain"
	"chatmart/internal/repository"
)

const (
	minCodeLength = 3
	maxCodeLength = 20
)

var (
	ErrInvalidPromocode = errors.New("invalid promocode data")

	codePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)
)

// PromocodeService validates, prices and activates discount codes, and
// carries the admin management surface
type PromocodeService interface {
	ValidateForOrder(ctx context.Context, code string, userID int64, orderAmount decimal.Decimal) (*domain.Promocode, error)
	CalculateDiscount(ctx context.Context, code string, userID int64, orderAmount decimal.Decimal) (decimal.Decimal, error)
	Apply(ctx context.Context, code string, userID int64, orderID *int64, orderAmount decimal.Decimal) (*domain.Promocode, decimal.Decimal, error)

	Create(ctx context.Context, promocode *domain.Promocode) error
	Update(ctx context.Context, id int64, promocode *domain.Promocode) error
	SetActive(ctx context.Context, id int64, active bool) error
	Get(ctx context.Context, id int64) (*domain.Promocode, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Promocode, error)
}

type promocodeService struct {
	promocodeRepo repository.PromocodeRepository
	cfg           config.MarketplaceConfig
	logger        *zap.Logger
	now           func() time.Time
}

// NewPromocodeService creates a new instance of PromocodeService
func NewPromocodeService(
	promocodeRepo repository.PromocodeRepository,
	cfg config.MarketplaceConfig,
	logger *zap.Logger,
) PromocodeService {
	return &promocodeService{
		promocodeRepo: promocodeRepo,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// ValidateForOrder checks whether the code can be applied by the user to an
// order of the given amount. Failures are reported in a fixed order: a code
// that is both expired and below minimum reports expired.
func (s *promocodeService) ValidateForOrder(ctx context.Context, code string, userID int64, orderAmount decimal.Decimal) (*domain.Promocode, error) {
	promocode, err := s.promocodeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch promocode.EffectiveStatus(now) {
	case domain.PromocodeStatusInactive:
		return nil, repository.ErrPromocodeInactive
	case domain.PromocodeStatusExpired:
		return nil, repository.ErrPromocodeExpired
	case domain.PromocodeStatusExhausted:
		return nil, repository.ErrPromocodeExhausted
	}

	if promocode.OnePerUser {
		used, err := s.promocodeRepo.HasUserUsed(ctx, promocode.ID, userID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, repository.ErrPromocodeAlreadyUsed
		}
	}

	if promocode.MinOrderAmount != nil && orderAmount.LessThan(*promocode.MinOrderAmount) {
		return nil, repository.ErrPromocodeBelowMinimum
	}

	return promocode, nil
}

// CalculateDiscount validates the code for the user and returns the discount
// it would grant on the given amount, without consuming a use
func (s *promocodeService) CalculateDiscount(ctx context.Context, code string, userID int64, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	promocode, err := s.ValidateForOrder(ctx, code, userID, orderAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return promocode.CalculateDiscount(orderAmount, s.now()), nil
}

// Apply consumes one use of the code for the order. The repository performs
// the validation again under a row lock, so a code that passed
// ValidateForOrder moments ago can still fail here.
func (s *promocodeService) Apply(ctx context.Context, code string, userID int64, orderID *int64, orderAmount decimal.Decimal) (*domain.Promocode, decimal.Decimal, error) {
	promocode, discount, err := s.promocodeRepo.Apply(ctx, code, userID, orderID, orderAmount)
	if err != nil {
		return nil, decimal.Zero, err
	}

	s.logger.Info("promocode applied",
		zap.String("code", promocode.Code),
		zap.Int64("user_id", userID),
		zap.String("discount", discount.String()))

	return promocode, discount, nil
}

// Create validates and stores a new promocode
func (s *promocodeService) Create(ctx context.Context, promocode *domain.Promocode) error {
	promocode.Code = strings.ToUpper(strings.TrimSpace(promocode.Code))
	if err := s.validatePromocode(promocode); err != nil {
		return err
	}

	if promocode.Status == "" {
		promocode.Status = promocode.EffectiveStatus(s.now())
	}

	if err := s.promocodeRepo.Create(ctx, promocode); err != nil {
		return err
	}

	s.logger.Info("promocode created",
		zap.String("code", promocode.Code),
		zap.Int("discount_percent", promocode.DiscountPercent))

	return nil
}

// Update rewrites a promocode's terms. The code and usage counter stay fixed.
func (s *promocodeService) Update(ctx context.Context, id int64, promocode *domain.Promocode) error {
	existing, err := s.promocodeRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	promocode.ID = existing.ID
	promocode.Code = existing.Code
	promocode.CurrentUses = existing.CurrentUses

	if err := s.validatePromocode(promocode); err != nil {
		return err
	}

	promocode.Status = promocode.EffectiveStatus(s.now())

	if err := s.promocodeRepo.Update(ctx, promocode); err != nil {
		return err
	}

	s.logger.Info("promocode updated", zap.Int64("promocode_id", id))
	return nil
}

// SetActive flips the manual kill switch
func (s *promocodeService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.promocodeRepo.SetActive(ctx, id, active); err != nil {
		return err
	}

	s.logger.Info("promocode active flag changed",
		zap.Int64("promocode_id", id),
		zap.Bool("active", active))

	return nil
}

// Get retrieves a promocode by ID
func (s *promocodeService) Get(ctx context.Context, id int64) (*domain.Promocode, error) {
	return s.promocodeRepo.FindByID(ctx, id)
}

// List returns promocodes, optionally only active ones
func (s *promocodeService) List(ctx context.Context, activeOnly bool) ([]*domain.Promocode, error) {
	return s.promocodeRepo.List(ctx, activeOnly)
}

// validatePromocode enforces the business limits on a code's terms
func (s *promocodeService) validatePromocode(promocode *domain.Promocode) error {
	if len(promocode.Code) < minCodeLength || len(promocode.Code) > maxCodeLength {
		return fmt.Errorf("%w: code must be %d-%d characters",
			ErrInvalidPromocode, minCodeLength, maxCodeLength)
	}
	if !codePattern.MatchString(promocode.Code) {
		return fmt.Errorf("%w: code may contain only letters, digits, dash and underscore",
			ErrInvalidPromocode)
	}
	if promocode.DiscountPercent < 1 || promocode.DiscountPercent > s.cfg.MaxPromocodeDiscount {
		return fmt.Errorf("%w: discount percent must be 1-%d",
			ErrInvalidPromocode, s.cfg.MaxPromocodeDiscount)
	}
	if promocode.MinOrderAmount != nil && promocode.MinOrderAmount.IsNegative() {
		return fmt.Errorf("%w: minimum order amount cannot be negative", ErrInvalidPromocode)
	}
	if promocode.MaxDiscountAmount != nil && promocode.MaxDiscountAmount.IsNegative() {
		return fmt.Errorf("%w: maximum discount amount cannot be negative", ErrInvalidPromocode)
	}
	if promocode.MaxUses != nil && *promocode.MaxUses < 1 {
		return fmt.Errorf("%w: max uses must be positive", ErrInvalidPromocode)
	}
	if promocode.ValidFrom != nil && promocode.ValidUntil != nil &&
		promocode.ValidUntil.Before(*promocode.ValidFrom) {
		return fmt.Errorf("%w: validity window is inverted", ErrInvalidPromocode)
	}
	return nil
}
