package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Coupon struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	Code                  string          `json:"code" gorm:"unique;not null"`
	Type                  string          `json:"type" gorm:"not null"` // percentage, fixed
	Value                 decimal.Decimal `json:"value" gorm:"type:decimal(12,2);not null"`
	ShopID                *uint           `json:"shop_id" gorm:"index"` // nil = platform-wide
	ApplicableCategories  []uint          `json:"applicable_categories" gorm:"serializer:json"`
	ApplicableProducts    []uint          `json:"applicable_products" gorm:"serializer:json"`
	MinimumOrderAmount    decimal.Decimal `json:"minimum_order_amount" gorm:"type:decimal(12,2)"`
	MaximumDiscountAmount decimal.Decimal `json:"maximum_discount_amount" gorm:"type:decimal(12,2)"`
	TotalUsageLimit       int             `json:"total_usage_limit"`    // 0 = unlimited
	PerUserUsageLimit     int             `json:"per_user_usage_limit"` // 0 = unlimited
	CurrentUsageCount     int             `json:"current_usage_count" gorm:"default:0"`
	Usages                []CouponUsage   `json:"usages" gorm:"foreignKey:CouponID;constraint:OnDelete:CASCADE"`
	StartsAt              time.Time       `json:"starts_at" gorm:"not null"`
	ExpiresAt             time.Time       `json:"expires_at" gorm:"not null"`
	IsActive              bool            `json:"is_active" gorm:"default:true"`
	CreatedBy             uint            `json:"created_by" gorm:"not null"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `json:"deleted_at" gorm:"index"`
}

// CouponUsage records one redemption. Rows are append-only.
type CouponUsage struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	CouponID       uint            `json:"coupon_id" gorm:"not null;index"`
	UserID         uint            `json:"user_id" gorm:"not null;index"`
	OrderAmount    decimal.Decimal `json:"order_amount" gorm:"type:decimal(12,2)"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2)"`
	UsedAt         time.Time       `json:"used_at"`
}

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// IsWithinWindow reports whether now falls inside [StartsAt, ExpiresAt).
func (c *Coupon) IsWithinWindow(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.ExpiresAt)
}

// IsPlatformWide reports whether the coupon applies to every shop.
func (c *Coupon) IsPlatformWide() bool {
	return c.ShopID == nil
}
