package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type InitializePaymentRequest struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Customer  string          `json:"customer"`
}

type InitializePaymentResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url"`
	Message    string `json:"message"`
}

type VerifyPaymentResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Status    string `json:"status"` // pending, success, failed
}

type CreateEscrowRequest struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Customer  string          `json:"customer"`
	Seller    string          `json:"seller"`
}

type CreateEscrowResponse struct {
	Success  bool   `json:"success"`
	EscrowID string `json:"escrow_id"`
	Message  string `json:"message"`
}

type ReleaseEscrowResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type RefundRequest struct {
	Reference string           `json:"reference"`
	Amount    *decimal.Decimal `json:"amount,omitempty"` // nil = full refund
}

type RefundResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// InitializePayment opens a gateway payment session and returns the URL the
// buyer completes payment at.
func (c *Client) InitializePayment(ctx context.Context, reference string, amount decimal.Decimal, customer string) (string, error) {
	req := InitializePaymentRequest{Reference: reference, Amount: amount, Customer: customer}

	var resp InitializePaymentResponse
	if err := c.post(ctx, "/payments/initialize", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("payment initialization rejected: %s", resp.Message)
	}

	return resp.PaymentURL, nil
}

// VerifyPayment asks the gateway for the authoritative status of a payment
// reference.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (string, error) {
	var resp VerifyPaymentResponse
	if err := c.get(ctx, "/payments/verify/"+reference, &resp); err != nil {
		return "", err
	}

	return resp.Status, nil
}

// CreateEscrow opens a hold for the order total and returns the escrow id.
func (c *Client) CreateEscrow(ctx context.Context, reference string, amount decimal.Decimal, customer, seller string) (string, error) {
	req := CreateEscrowRequest{Reference: reference, Amount: amount, Customer: customer, Seller: seller}

	var resp CreateEscrowResponse
	if err := c.post(ctx, "/escrow", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("escrow creation rejected: %s", resp.Message)
	}

	return resp.EscrowID, nil
}

// ReleaseEscrow disburses a held amount to the seller.
func (c *Client) ReleaseEscrow(ctx context.Context, escrowID string) (string, error) {
	var resp ReleaseEscrowResponse
	if err := c.post(ctx, "/escrow/"+escrowID+"/release", struct{}{}, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("escrow release rejected: %s", resp.Message)
	}

	return resp.Status, nil
}

// Refund returns funds to the buyer. A nil amount refunds the full payment.
func (c *Client) Refund(ctx context.Context, reference string, amount *decimal.Decimal) (string, error) {
	req := RefundRequest{Reference: reference, Amount: amount}

	var resp RefundResponse
	if err := c.post(ctx, "/refunds", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("refund rejected: %s", resp.Message)
	}

	return resp.Status, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
