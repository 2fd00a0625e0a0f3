package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// MetricsSnapshot is the cached view of a shop's performance metrics, kept so
// read endpoints do not rescan orders between recomputes.
type MetricsSnapshot struct {
	ShopID              uint      `json:"shop_id"`
	TotalOrders         int       `json:"total_orders"`
	CancelledOrders     int       `json:"cancelled_orders"`
	CancellationRate    float64   `json:"cancellation_rate"`
	AverageDeliveryTime float64   `json:"average_delivery_time"`
	IsActive            bool      `json:"is_active"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// ClaimEvent claims a webhook event reference for processing. It returns
// false when the reference was already claimed, which callers must treat as
// "already processed, no-op". The claim expires after ttl so a crashed
// handler does not block redelivery forever.
func (c *Client) ClaimEvent(ctx context.Context, eventRef string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, "webhook:"+eventRef, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook event: %w", err)
	}
	return ok, nil
}

// ReleaseEvent drops a claim so a failed handler run can be retried.
func (c *Client) ReleaseEvent(ctx context.Context, eventRef string) error {
	return c.rdb.Del(ctx, "webhook:"+eventRef).Err()
}

// Shop metrics snapshot cache

func (c *Client) SetShopMetrics(ctx context.Context, snapshot *MetricsSnapshot, ttl time.Duration) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics snapshot: %w", err)
	}

	key := fmt.Sprintf("shop_metrics:%d", snapshot.ShopID)
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

func (c *Client) GetShopMetrics(ctx context.Context, shopID uint) (*MetricsSnapshot, error) {
	key := fmt.Sprintf("shop_metrics:%d", shopID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metrics snapshot: %w", err)
	}

	var snapshot MetricsSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics snapshot: %w", err)
	}

	return &snapshot, nil
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
