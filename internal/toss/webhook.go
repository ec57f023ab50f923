package toss

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "toss-signature"

// Webhook event types the service reacts to. Anything else is ignored.
const (
	EventPaymentAuthorized = "PAYMENT.AUTHORIZED"
	EventPaymentFailed     = "PAYMENT.FAILED"
)

// WebhookEvent is a verified, decoded webhook payload
type WebhookEvent struct {
	EventType string      `json:"eventType"`
	CreatedAt time.Time   `json:"createdAt"`
	Data      WebhookData `json:"data"`
}

// WebhookData carries the order reference inside a webhook event
type WebhookData struct {
	OrderID    string `json:"orderId"`
	PaymentKey string `json:"paymentKey,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ComputeSignature computes the base64-encoded HMAC-SHA256 of a payload
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature against the raw request body.
// The body must be hashed before any JSON parsing; the comparison is
// constant-time since the signature is the sole authentication mechanism.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := ComputeSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookEvent decodes a verified payload. Unknown event types decode
// fine and are left for the caller's default arm; a payload without an
// event type is malformed.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("webhook payload missing eventType")
	}
	return &event, nil
}
