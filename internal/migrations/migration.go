package migrations

import (
	"errors"
	"log"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/services"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RunMigrations migrates the schema and seeds default data.
func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Shop{},
		&models.Order{},
		&models.OrderItem{},
		&models.TimelineEntry{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.Transaction{},
	)
	if err != nil {
		return err
	}

	if err := createDefaultData(db); err != nil {
		log.Printf("Warning: Failed to create default data: %v", err)
	}

	log.Println("Database migrations completed successfully!")
	return nil
}

func createDefaultData(db *gorm.DB) error {
	userRepo := repository.NewUserRepository(db)
	userService := services.NewUserService(userRepo)
	shopRepo := repository.NewShopRepository(db)
	couponRepo := repository.NewCouponRepository(db)

	if _, err := userRepo.GetByUsername("admin"); err == nil {
		log.Println("Default data already present")
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	log.Println("Creating default data...")

	admin := &models.User{
		Username:      "admin",
		Email:         "admin@marketplace.local",
		Role:          string(models.RoleAdmin),
		AccountStatus: string(models.AccountActive),
		IsActive:      true,
	}
	if err := userService.CreateUser(admin, "changeme123"); err != nil {
		return err
	}

	seller := &models.User{
		Username:      "demo_seller",
		Email:         "seller@marketplace.local",
		Role:          string(models.RoleSeller),
		AccountStatus: string(models.AccountActive),
		IsActive:      true,
	}
	if err := userService.CreateUser(seller, "changeme123"); err != nil {
		return err
	}

	shop := &models.Shop{
		Name:     "Demo Shop",
		OwnerID:  seller.ID,
		IsActive: true,
	}
	if err := shopRepo.Create(shop); err != nil {
		return err
	}

	coupon := &models.Coupon{
		Code:                  "WELCOME10",
		Type:                  string(models.CouponPercentage),
		Value:                 decimal.NewFromInt(10),
		MinimumOrderAmount:    decimal.NewFromInt(5000),
		MaximumDiscountAmount: decimal.NewFromInt(2000),
		TotalUsageLimit:       100,
		PerUserUsageLimit:     1,
		StartsAt:              time.Now(),
		ExpiresAt:             time.Now().AddDate(0, 3, 0),
		IsActive:              true,
		CreatedBy:             admin.ID,
	}
	if err := couponRepo.Create(coupon); err != nil {
		return err
	}

	log.Println("Default data created successfully!")
	return nil
}
