package services

import (
	"time"

	"marketplace/internal/errs"
	"marketplace/internal/models"
	"marketplace/internal/repository"

	"github.com/shopspring/decimal"
)

// ValidationResult carries the outcome of a coupon check. Reason is set to
// the first failing check only.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type CouponService interface {
	CreateCoupon(coupon *models.Coupon) error
	GetByCode(code string) (*models.Coupon, error)
	GetByShopID(shopID uint) ([]models.Coupon, error)
	Deactivate(id uint) error
	Validate(coupon *models.Coupon, userID uint, orderAmount decimal.Decimal, shopID uint, productIDs, categoryIDs []uint) (*ValidationResult, error)
	CalculateDiscount(coupon *models.Coupon, orderAmount decimal.Decimal) decimal.Decimal
	MarkUsed(couponID, userID uint, orderAmount, discountAmount decimal.Decimal) error
	ReleaseUsage(couponID, userID uint) error
}

type couponService struct {
	couponRepo repository.CouponRepository
}

func NewCouponService(couponRepo repository.CouponRepository) CouponService {
	return &couponService{couponRepo: couponRepo}
}

func (s *couponService) CreateCoupon(coupon *models.Coupon) error {
	if coupon.Code == "" {
		return errs.Validation("coupon code is required")
	}
	if coupon.Type != string(models.CouponPercentage) && coupon.Type != string(models.CouponFixed) {
		return errs.Validation("unknown coupon type: %s", coupon.Type)
	}
	if coupon.Value.IsNegative() || coupon.Value.IsZero() {
		return errs.Validation("coupon value must be positive")
	}
	if !coupon.ExpiresAt.After(coupon.StartsAt) {
		return errs.Validation("coupon expiry must be after its start")
	}

	return s.couponRepo.Create(coupon)
}

func (s *couponService) GetByCode(code string) (*models.Coupon, error) {
	return s.couponRepo.GetByCode(code)
}

func (s *couponService) GetByShopID(shopID uint) ([]models.Coupon, error) {
	return s.couponRepo.GetByShopID(shopID)
}

func (s *couponService) Deactivate(id uint) error {
	return s.couponRepo.Deactivate(id)
}

// Validate runs the redemption checks in a fixed, short-circuiting order and
// reports the first failure: active window, global cap, per-user cap, minimum
// order amount, shop scope, product/category scope.
func (s *couponService) Validate(coupon *models.Coupon, userID uint, orderAmount decimal.Decimal, shopID uint, productIDs, categoryIDs []uint) (*ValidationResult, error) {
	if !coupon.IsActive || !coupon.IsWithinWindow(time.Now()) {
		return &ValidationResult{Reason: "coupon is not active or has expired"}, nil
	}

	if coupon.TotalUsageLimit > 0 && coupon.CurrentUsageCount >= coupon.TotalUsageLimit {
		return &ValidationResult{Reason: "coupon usage limit reached"}, nil
	}

	if coupon.PerUserUsageLimit > 0 {
		used, err := s.couponRepo.CountUsagesByUser(coupon.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= int64(coupon.PerUserUsageLimit) {
			return &ValidationResult{Reason: "per-user usage limit reached"}, nil
		}
	}

	if orderAmount.LessThan(coupon.MinimumOrderAmount) {
		return &ValidationResult{Reason: "order amount below coupon minimum"}, nil
	}

	if !coupon.IsPlatformWide() && *coupon.ShopID != shopID {
		return &ValidationResult{Reason: "coupon is not valid for this shop"}, nil
	}

	if len(coupon.ApplicableProducts) > 0 || len(coupon.ApplicableCategories) > 0 {
		if !matchesScope(coupon, productIDs, categoryIDs) {
			return &ValidationResult{Reason: "coupon is not applicable to these products"}, nil
		}
	}

	return &ValidationResult{Valid: true}, nil
}

func matchesScope(coupon *models.Coupon, productIDs, categoryIDs []uint) bool {
	for _, p := range productIDs {
		for _, allowed := range coupon.ApplicableProducts {
			if p == allowed {
				return true
			}
		}
	}
	for _, c := range categoryIDs {
		for _, allowed := range coupon.ApplicableCategories {
			if c == allowed {
				return true
			}
		}
	}
	return false
}

// CalculateDiscount is pure: identical inputs always produce the same
// discount. The result is clamped to the coupon maximum and the order amount,
// then rounded half-up to the nearest integer currency unit.
func (s *couponService) CalculateDiscount(coupon *models.Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch coupon.Type {
	case string(models.CouponPercentage):
		discount = orderAmount.Mul(coupon.Value).Div(decimal.NewFromInt(100))
	case string(models.CouponFixed):
		discount = decimal.Min(coupon.Value, orderAmount)
	default:
		return decimal.Zero
	}

	if coupon.MaximumDiscountAmount.IsPositive() && discount.GreaterThan(coupon.MaximumDiscountAmount) {
		discount = coupon.MaximumDiscountAmount
	}
	if discount.IsNegative() {
		return decimal.Zero
	}

	discount = discount.Round(0)
	if discount.GreaterThan(orderAmount) {
		discount = orderAmount.RoundDown(0)
	}
	return discount
}

// MarkUsed redeems the coupon. The usage counter is bumped with the cap check
// folded into one guarded statement, never a read-then-write, so concurrent
// redemptions cannot overrun the cap. A rejected guard surfaces as a
// consistency violation the caller should treat as retryable.
func (s *couponService) MarkUsed(couponID, userID uint, orderAmount, discountAmount decimal.Decimal) error {
	ok, err := s.couponRepo.IncrementUsage(couponID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Consistency("coupon %d usage cap reached", couponID)
	}

	usage := &models.CouponUsage{
		CouponID:       couponID,
		UserID:         userID,
		OrderAmount:    orderAmount,
		DiscountAmount: discountAmount,
		UsedAt:         time.Now(),
	}
	return s.couponRepo.CreateUsage(usage)
}

// ReleaseUsage compensates a redemption whose triggering order failed to
// persist: the cap capacity is returned and the usage row removed, so the
// buyer can redeem again.
func (s *couponService) ReleaseUsage(couponID, userID uint) error {
	if err := s.couponRepo.DecrementUsage(couponID); err != nil {
		return err
	}
	return s.couponRepo.DeleteLatestUsage(couponID, userID)
}
