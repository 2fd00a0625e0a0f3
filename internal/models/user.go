package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Username      string         `json:"username" gorm:"unique;not null"`
	Email         string         `json:"email" gorm:"unique;not null"`
	PhoneNumber   string         `json:"phone_number"`
	PasswordHash  string         `json:"-" gorm:"not null"`
	Role          string         `json:"role" gorm:"default:'buyer'"` // admin, seller, buyer
	AccountStatus string         `json:"account_status" gorm:"default:'active'"`
	ReviewReason  string         `json:"review_reason"`
	IsActive      bool           `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleSeller UserRole = "seller"
	RoleBuyer  UserRole = "buyer"
)

type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountUnderReview AccountStatus = "under_review"
	AccountSuspended   AccountStatus = "suspended"
)

// Review reasons recorded when an account is flagged.
const (
	ReviewHighCancellationRate = "highCancellationRate"
	ReviewEscrowUnavailable    = "escrowUnavailable"
)
