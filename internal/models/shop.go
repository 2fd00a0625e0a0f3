package models

import (
	"time"

	"gorm.io/gorm"
)

type Shop struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	Name                string         `json:"name" gorm:"not null"`
	OwnerID             uint           `json:"owner_id" gorm:"not null;index"`
	IsActive            bool           `json:"is_active" gorm:"default:true"`
	TotalOrders         int            `json:"total_orders" gorm:"default:0"`
	CancelledOrders     int            `json:"cancelled_orders" gorm:"default:0"`
	CancellationRate    float64        `json:"cancellation_rate" gorm:"default:0"`
	AverageDeliveryTime float64        `json:"average_delivery_time" gorm:"default:0"` // hours
	MetricsUpdatedAt    *time.Time     `json:"metrics_updated_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}
