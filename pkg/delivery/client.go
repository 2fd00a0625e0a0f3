package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client consumes the delivery provider's tracking API. Routing and carrier
// selection live with the provider; only tracking is consumed here.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type TrackingEvent struct {
	Status    string    `json:"status"` // in_transit, delivered, failed
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

type trackingResponse struct {
	Reference string          `json:"reference"`
	Events    []TrackingEvent `json:"events"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TrackDelivery returns the tracking events recorded for a shipment
// reference, oldest first.
func (c *Client) TrackDelivery(ctx context.Context, reference string) ([]TrackingEvent, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/track/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var tracking trackingResponse
	if err := json.Unmarshal(body, &tracking); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return tracking.Events, nil
}
