package toss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a server-to-server client for the Toss Payments REST API.
// It is constructed per process from configuration; credentials never
// live in package-level state.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new Toss Payments API client
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ConfirmRequest is the payload of POST /v1/payments/confirm
type ConfirmRequest struct {
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
	PaymentKey string `json:"paymentKey"`
}

// Payment is the subset of the confirm response the service uses
type Payment struct {
	PaymentKey  string    `json:"paymentKey"`
	OrderID     string    `json:"orderId"`
	OrderName   string    `json:"orderName"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"totalAmount"`
	ApprovedAt  time.Time `json:"approvedAt"`
	Method      string    `json:"method"`
}

// APIError is a rejection from the Toss API; Code and Message are passed
// through verbatim to the failure redirect.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toss: %s (code: %s)", e.Message, e.Code)
}

// ConfirmPayment calls the Toss confirm endpoint with the stored amount.
// Authentication is Basic auth with the secret key as username and an
// empty password, per the Toss API convention.
func (c *Client) ConfirmPayment(ctx context.Context, orderID string, amount int64, paymentKey string) (*Payment, error) {
	body, err := json.Marshal(ConfirmRequest{
		OrderID:    orderID,
		Amount:     amount,
		PaymentKey: paymentKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payments/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create confirm request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("confirm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return nil, fmt.Errorf("toss confirm returned status %d", resp.StatusCode)
		}
		return nil, &apiErr
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("failed to decode confirm response: %w", err)
	}

	return &payment, nil
}
