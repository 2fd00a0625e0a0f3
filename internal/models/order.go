package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	OrderNumber      string          `json:"order_number" gorm:"unique;not null"`
	BuyerID          uint            `json:"buyer_id" gorm:"not null;index"`
	SellerID         uint            `json:"seller_id" gorm:"not null;index"`
	ShopID           uint            `json:"shop_id" gorm:"not null;index"`
	Items            []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Subtotal         decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	ShippingFee      decimal.Decimal `json:"shipping_fee" gorm:"type:decimal(12,2)"`
	TaxAmount        decimal.Decimal `json:"tax_amount" gorm:"type:decimal(12,2)"`
	DiscountAmount   decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2)"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	CouponCode       string          `json:"coupon_code"`
	Status           string          `json:"status" gorm:"default:'pending';index"`
	PaymentStatus    string          `json:"payment_status" gorm:"default:'pending'"`
	PaymentRef       string          `json:"payment_ref" gorm:"index"`
	EscrowStatus     string          `json:"escrow_status" gorm:"default:'pending'"`
	EscrowReference  string          `json:"escrow_reference"`
	EscrowCreatedAt  *time.Time      `json:"escrow_created_at"`
	EscrowReleasedAt *time.Time      `json:"escrow_released_at"`
	DeliveredAt      *time.Time      `json:"delivered_at"`
	ShippingAddress  string          `json:"shipping_address" gorm:"type:text"`
	PaymentMethod    string          `json:"payment_method"`
	Timeline         []TimelineEntry `json:"timeline" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `json:"deleted_at" gorm:"index"`
}

// TimelineEntry is the append-only audit trail of order status changes.
// Entries are written once per transition and never updated.
type TimelineEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OrderID   uint      `json:"order_id" gorm:"not null;index"`
	Status    string    `json:"status" gorm:"not null"`
	Note      string    `json:"note" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentEscrowed PaymentStatus = "escrowed"
)

type EscrowStatus string

const (
	EscrowPending  EscrowStatus = "pending"
	EscrowFunded   EscrowStatus = "funded"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

// allowedTransitions is the fixed order-status transition table. Terminal
// statuses have no entry.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
	OrderDelivered:  {OrderRefunded},
}

// CanTransitionTo reports whether the transition table allows moving the
// order from its current status to target.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	for _, next := range allowedTransitions[OrderStatus(o.Status)] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether s admits no further transitions.
func IsTerminalStatus(s OrderStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// CanBeCancelled reports whether the buyer may still cancel the order.
func (o *Order) CanBeCancelled() bool {
	return o.Status == string(OrderPending) || o.Status == string(OrderConfirmed)
}

// CanBeRefunded reports whether the order is still inside the refund window.
func (o *Order) CanBeRefunded(window time.Duration) bool {
	if o.Status != string(OrderDelivered) || o.DeliveredAt == nil {
		return false
	}
	return time.Since(*o.DeliveredAt) <= window
}
