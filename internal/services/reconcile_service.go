package services

import (
	"context"
	"log"
	"time"

	"marketplace/internal/repository"
)

// ReconcileService periodically recomputes metrics for shops that saw a
// terminal order recently. It backstops the per-transition recompute, which
// is best-effort and may have been lost to a crash or a transient failure.
type ReconcileService interface {
	Run(ctx context.Context) error
	Start(ctx context.Context, interval time.Duration)
}

type reconcileService struct {
	orderRepo repository.OrderRepository
	metrics   MetricsRecomputer
	lookback  time.Duration
}

func NewReconcileService(orderRepo repository.OrderRepository, metrics MetricsRecomputer, lookback time.Duration) ReconcileService {
	return &reconcileService{
		orderRepo: orderRepo,
		metrics:   metrics,
		lookback:  lookback,
	}
}

func (s *reconcileService) Run(ctx context.Context) error {
	shopIDs, err := s.orderRepo.GetShopIDsWithTerminalOrdersSince(time.Now().Add(-s.lookback))
	if err != nil {
		return err
	}

	for _, shopID := range shopIDs {
		if err := s.metrics.RecomputeMetrics(ctx, shopID); err != nil {
			log.Printf("reconcile: recompute failed for shop %d: %v", shopID, err)
		}
	}
	return nil
}

func (s *reconcileService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Run(ctx); err != nil {
					log.Printf("reconcile sweep failed: %v", err)
				}
			}
		}
	}()
}
