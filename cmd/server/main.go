package main

import (
	"context"
	"log"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/handlers"
	"marketplace/internal/migrations"
	"marketplace/internal/notifier"
	"marketplace/internal/redis"
	"marketplace/internal/repository"
	"marketplace/internal/services"
	"marketplace/pkg/delivery"
	"marketplace/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Event sink
	events := notifier.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaEventTopic)
	defer events.Close()

	// External gateways
	paymentClient := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.GatewayTimeout())
	deliveryClient := delivery.NewClient(cfg.PaymentAPIURL+"/delivery", cfg.GatewayTimeout())

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	shopRepo := repository.NewShopRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo)
	couponService := services.NewCouponService(couponRepo)
	shopService := services.NewShopService(shopRepo, orderRepo, userRepo, redisClient, events, services.TrustPolicy{
		SuspendCancellationRate:    cfg.SuspendCancellationRate,
		ReactivateCancellationRate: cfg.ReactivateCancellationRate,
		SuspendMinOrders:           cfg.SuspendMinOrders,
		ReactivateMinOrders:        cfg.ReactivateMinOrders,
	})
	orderService := services.NewOrderService(orderRepo, couponService, shopService, events)
	escrowService := services.NewEscrowService(orderRepo, transactionRepo, userRepo, paymentClient, events, services.EscrowConfig{
		FeeRate:        decimal.NewFromFloat(cfg.PlatformFeeRate),
		GatewayTimeout: cfg.GatewayTimeout(),
		RefundWindow:   cfg.RefundWindow(),
	})

	// Background metrics reconcile
	reconcileInterval := time.Duration(cfg.ReconcileIntervalSeconds) * time.Second
	reconcileService := services.NewReconcileService(orderRepo, shopService, 2*reconcileInterval)
	reconcileService.Start(context.Background(), reconcileInterval)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(userService, orderService, escrowService, couponService, shopService)
	webhookHandler := handlers.NewWebhookHandler(orderService, escrowService, deliveryClient, redisClient,
		cfg.PaymentWebhookSecret, time.Duration(cfg.WebhookDedupTTLSeconds)*time.Second)

	// Setup routes
	router := gin.Default()

	// Gateway webhook
	router.POST("/api/payments/webhook", webhookHandler.HandlePaymentWebhook)

	// API endpoints
	api := router.Group("/api")
	{
		api.POST("/checkout", apiHandler.Checkout)
		api.GET("/orders", apiHandler.ListOrders)
		api.GET("/orders/:id", apiHandler.GetOrder)
		api.PUT("/orders/:id/status", apiHandler.UpdateOrderStatus)
		api.POST("/orders/:id/release", apiHandler.ReleaseEscrow)
		api.POST("/orders/:id/refund", apiHandler.RefundOrder)
		api.POST("/orders/:id/sync-delivery", webhookHandler.SyncDelivery)

		api.POST("/coupons", apiHandler.CreateCoupon)
		api.POST("/coupons/validate", apiHandler.ValidateCoupon)
		api.DELETE("/coupons/:id", apiHandler.DeactivateCoupon)

		api.POST("/shops", apiHandler.CreateShop)
		api.GET("/shops/:id/metrics", apiHandler.GetShopMetrics)

		api.POST("/users", apiHandler.RegisterUser)
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
