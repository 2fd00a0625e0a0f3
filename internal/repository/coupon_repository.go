package repository

import (
	"errors"

	"marketplace/internal/models"

	"gorm.io/gorm"
)

type CouponRepository interface {
	Create(coupon *models.Coupon) error
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	GetByShopID(shopID uint) ([]models.Coupon, error)
	Update(coupon *models.Coupon) error
	Deactivate(id uint) error
	IncrementUsage(couponID uint) (bool, error)
	DecrementUsage(couponID uint) error
	CreateUsage(usage *models.CouponUsage) error
	DeleteLatestUsage(couponID, userID uint) error
	CountUsagesByUser(couponID, userID uint) (int64, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

func (r *couponRepository) GetByID(id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.First(&coupon, id).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepository) GetByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepository) GetByShopID(shopID uint) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.Where("shop_id = ?", shopID).Find(&coupons).Error
	return coupons, err
}

func (r *couponRepository) Update(coupon *models.Coupon) error {
	return r.db.Save(coupon).Error
}

// Deactivate soft-retires a coupon. Used coupons are never hard-deleted.
func (r *couponRepository) Deactivate(id uint) error {
	return r.db.Model(&models.Coupon{}).Where("id = ?", id).Update("is_active", false).Error
}

// IncrementUsage bumps the redemption counter with the usage cap folded into
// the WHERE clause, so the increment and the cap check are one atomic
// statement. A false return means the cap was already reached.
func (r *couponRepository) IncrementUsage(couponID uint) (bool, error) {
	result := r.db.Model(&models.Coupon{}).
		Where("id = ? AND (total_usage_limit = 0 OR current_usage_count < total_usage_limit)", couponID).
		Update("current_usage_count", gorm.Expr("current_usage_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DecrementUsage returns one unit of cap capacity when a redemption is
// compensated. The floor guard keeps a double compensation from going
// negative.
func (r *couponRepository) DecrementUsage(couponID uint) error {
	return r.db.Model(&models.Coupon{}).
		Where("id = ? AND current_usage_count > 0", couponID).
		Update("current_usage_count", gorm.Expr("current_usage_count - 1")).Error
}

func (r *couponRepository) CreateUsage(usage *models.CouponUsage) error {
	return r.db.Create(usage).Error
}

// DeleteLatestUsage removes the user's most recent usage row. A missing row
// is not an error; the compensation may race a retry.
func (r *couponRepository) DeleteLatestUsage(couponID, userID uint) error {
	var usage models.CouponUsage
	err := r.db.Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Order("id DESC").First(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return r.db.Delete(&usage).Error
}

func (r *couponRepository) CountUsagesByUser(couponID, userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}
