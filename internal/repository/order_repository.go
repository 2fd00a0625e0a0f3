package repository

import (
	"time"

	"marketplace/internal/models"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	GetByPaymentRef(paymentRef string) (*models.Order, error)
	GetByBuyerID(buyerID uint) ([]models.Order, error)
	GetByShopID(shopID uint) ([]models.Order, error)
	UpdateStatus(orderID uint, from, to models.OrderStatus, updates map[string]interface{}) (bool, error)
	UpdateEscrowStatus(orderID uint, from models.EscrowStatus, updates map[string]interface{}) (bool, error)
	UpdatePaymentStatus(orderID uint, from models.PaymentStatus, updates map[string]interface{}) (bool, error)
	UpdateFields(orderID uint, updates map[string]interface{}) error
	AppendTimeline(entry *models.TimelineEntry) error
	GetShopOrderStats(shopID uint) (total int64, cancelled int64, err error)
	GetAverageDeliveryHours(shopID uint) (float64, error)
	GetShopIDsWithTerminalOrdersSince(since time.Time) ([]uint, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").Preload("Timeline").First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").Preload("Timeline").Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByPaymentRef(paymentRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").Where("payment_ref = ?", paymentRef).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByBuyerID(buyerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Items").Where("buyer_id = ?", buyerID).Find(&orders).Error
	return orders, err
}

func (r *orderRepository) GetByShopID(shopID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Items").Where("shop_id = ?", shopID).Find(&orders).Error
	return orders, err
}

// UpdateStatus moves the order status with a conditional write guarded on the
// expected current status. It returns false when another writer got there
// first, leaving the row untouched.
func (r *orderRepository) UpdateStatus(orderID uint, from, to models.OrderStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = string(to)

	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateEscrowStatus advances the escrow status with the same guarded-write
// scheme, so two concurrent release calls produce exactly one winner.
func (r *orderRepository) UpdateEscrowStatus(orderID uint, from models.EscrowStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND escrow_status = ?", orderID, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdatePaymentStatus applies the same guarded-write scheme to the payment
// status, for writers that race on payment outcomes rather than order status.
func (r *orderRepository) UpdatePaymentStatus(orderID uint, from models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepository) UpdateFields(orderID uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}

func (r *orderRepository) AppendTimeline(entry *models.TimelineEntry) error {
	return r.db.Create(entry).Error
}

func (r *orderRepository) GetShopOrderStats(shopID uint) (int64, int64, error) {
	var total, cancelled int64

	err := r.db.Model(&models.Order{}).Where("shop_id = ?", shopID).Count(&total).Error
	if err != nil {
		return 0, 0, err
	}

	err = r.db.Model(&models.Order{}).
		Where("shop_id = ? AND status = ?", shopID, string(models.OrderCancelled)).
		Count(&cancelled).Error
	if err != nil {
		return 0, 0, err
	}

	return total, cancelled, nil
}

func (r *orderRepository) GetAverageDeliveryHours(shopID uint) (float64, error) {
	var hours float64
	err := r.db.Model(&models.Order{}).
		Where("shop_id = ? AND status = ?", shopID, string(models.OrderDelivered)).
		Select("COALESCE(AVG(EXTRACT(EPOCH FROM (updated_at - created_at)) / 3600), 0)").
		Row().
		Scan(&hours)
	return hours, err
}

func (r *orderRepository) GetShopIDsWithTerminalOrdersSince(since time.Time) ([]uint, error) {
	var shopIDs []uint
	err := r.db.Model(&models.Order{}).
		Where("status IN ? AND updated_at >= ?", []string{
			string(models.OrderCancelled),
			string(models.OrderDelivered),
			string(models.OrderRefunded),
		}, since).
		Distinct("shop_id").
		Pluck("shop_id", &shopIDs).Error
	return shopIDs, err
}
