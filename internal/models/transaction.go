package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one money-movement record in the journal. Rows are
// write-once apart from a single status move from pending to a terminal
// status.
type Transaction struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"not null;index"`
	OrderID     *uint           `json:"order_id" gorm:"index"`
	Type        string          `json:"type" gorm:"not null"` // payment, payout, refund, fee
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Status      string          `json:"status" gorm:"default:'pending'"`
	Reference   string          `json:"reference" gorm:"unique;not null"`
	Description string          `json:"description" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionPayout  TransactionType = "payout"
	TransactionRefund  TransactionType = "refund"
	TransactionFee     TransactionType = "fee"
)

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionSuccessful TransactionStatus = "successful"
	TransactionFailed     TransactionStatus = "failed"
	TransactionCancelled  TransactionStatus = "cancelled"
)
