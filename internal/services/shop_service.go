package services

import (
	"context"
	"log"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/notifier"
	"marketplace/internal/redis"
	"marketplace/internal/repository"
)

// TrustPolicy holds the suspend/reactivate thresholds. The band between the
// two rates and the minimum order counts form the anti-flap hysteresis.
type TrustPolicy struct {
	SuspendCancellationRate    float64
	ReactivateCancellationRate float64
	SuspendMinOrders           int
	ReactivateMinOrders        int
}

type ShopService interface {
	CreateShop(shop *models.Shop) error
	GetShop(id uint) (*models.Shop, error)
	GetMetrics(ctx context.Context, shopID uint) (*redis.MetricsSnapshot, error)
	RecomputeMetrics(ctx context.Context, shopID uint) error
}

type shopService struct {
	shopRepo  repository.ShopRepository
	orderRepo repository.OrderRepository
	userRepo  repository.UserRepository
	cache     *redis.Client
	events    notifier.Notifier
	policy    TrustPolicy
}

func NewShopService(
	shopRepo repository.ShopRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	cache *redis.Client,
	events notifier.Notifier,
	policy TrustPolicy,
) ShopService {
	return &shopService{
		shopRepo:  shopRepo,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		cache:     cache,
		events:    events,
		policy:    policy,
	}
}

func (s *shopService) CreateShop(shop *models.Shop) error {
	return s.shopRepo.Create(shop)
}

func (s *shopService) GetShop(id uint) (*models.Shop, error) {
	return s.shopRepo.GetByID(id)
}

// GetMetrics serves the cached snapshot when present, falling back to the
// persisted metrics.
func (s *shopService) GetMetrics(ctx context.Context, shopID uint) (*redis.MetricsSnapshot, error) {
	if s.cache != nil {
		snapshot, err := s.cache.GetShopMetrics(ctx, shopID)
		if err != nil {
			log.Printf("metrics cache read failed for shop %d: %v", shopID, err)
		} else if snapshot != nil {
			return snapshot, nil
		}
	}

	shop, err := s.shopRepo.GetByID(shopID)
	if err != nil {
		return nil, err
	}

	snapshot := &redis.MetricsSnapshot{
		ShopID:              shop.ID,
		TotalOrders:         shop.TotalOrders,
		CancelledOrders:     shop.CancelledOrders,
		CancellationRate:    shop.CancellationRate,
		AverageDeliveryTime: shop.AverageDeliveryTime,
		IsActive:            shop.IsActive,
	}
	if shop.MetricsUpdatedAt != nil {
		snapshot.UpdatedAt = *shop.MetricsUpdatedAt
	}
	return snapshot, nil
}

// RecomputeMetrics rescans the shop's orders and applies the trust policy.
// Suspend: rate above the suspend threshold with enough orders. Reactivate:
// rate at or below the reactivate threshold with a higher order floor. The
// asymmetry keeps a borderline shop from flapping.
func (s *shopService) RecomputeMetrics(ctx context.Context, shopID uint) error {
	total, cancelled, err := s.orderRepo.GetShopOrderStats(shopID)
	if err != nil {
		return err
	}

	rate := 0.0
	if total > 0 {
		rate = float64(cancelled) / float64(total)
	}

	avgDelivery, err := s.orderRepo.GetAverageDeliveryHours(shopID)
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.shopRepo.UpdateMetrics(shopID, map[string]interface{}{
		"total_orders":          total,
		"cancelled_orders":      cancelled,
		"cancellation_rate":     rate,
		"average_delivery_time": avgDelivery,
		"metrics_updated_at":    now,
	})
	if err != nil {
		return err
	}

	shop, err := s.shopRepo.GetByID(shopID)
	if err != nil {
		return err
	}

	if err := s.applyTrustPolicy(ctx, shop, rate, int(total)); err != nil {
		return err
	}

	if s.cache != nil {
		shop, err = s.shopRepo.GetByID(shopID)
		if err != nil {
			return err
		}
		snapshot := &redis.MetricsSnapshot{
			ShopID:              shopID,
			TotalOrders:         int(total),
			CancelledOrders:     int(cancelled),
			CancellationRate:    rate,
			AverageDeliveryTime: avgDelivery,
			IsActive:            shop.IsActive,
			UpdatedAt:           now,
		}
		if err := s.cache.SetShopMetrics(ctx, snapshot, time.Hour); err != nil {
			log.Printf("metrics cache write failed for shop %d: %v", shopID, err)
		}
	}

	return nil
}

func (s *shopService) applyTrustPolicy(ctx context.Context, shop *models.Shop, rate float64, total int) error {
	switch {
	case shop.IsActive && rate > s.policy.SuspendCancellationRate && total >= s.policy.SuspendMinOrders:
		flipped, err := s.shopRepo.SetActive(shop.ID, true, false)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}

		if err := s.userRepo.FlagUnderReview(shop.OwnerID, models.ReviewHighCancellationRate); err != nil {
			log.Printf("failed to flag owner %d of shop %d: %v", shop.OwnerID, shop.ID, err)
		}
		s.emit(ctx, notifier.Event{
			Type:   notifier.EventShopSuspended,
			ShopID: shop.ID,
			UserID: shop.OwnerID,
			Payload: map[string]interface{}{
				"cancellation_rate": rate,
				"total_orders":      total,
			},
		})

	case !shop.IsActive && rate <= s.policy.ReactivateCancellationRate && total >= s.policy.ReactivateMinOrders:
		flipped, err := s.shopRepo.SetActive(shop.ID, false, true)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}

		s.emit(ctx, notifier.Event{
			Type:   notifier.EventShopReactivated,
			ShopID: shop.ID,
			UserID: shop.OwnerID,
			Payload: map[string]interface{}{
				"cancellation_rate": rate,
				"total_orders":      total,
			},
		})
	}

	return nil
}

func (s *shopService) emit(ctx context.Context, event notifier.Event) {
	if err := s.events.Notify(ctx, event); err != nil {
		log.Printf("failed to emit %s event: %v", event.Type, err)
	}
}
