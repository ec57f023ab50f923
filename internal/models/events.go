package models

import "time"

// Event types
const (
	EventTypeRegistrationCreated = "REGISTRATION_CREATED"
	EventTypePaymentConfirmed    = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed       = "PAYMENT_FAILED"
	EventTypeRegistrationExpired = "REGISTRATION_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationCreatedEvent published when a pending registration is issued
type RegistrationCreatedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	StudentName string `json:"student_name"`
	Amount      int64  `json:"amount"`
}

// PaymentConfirmedEvent published when a payment reaches paid, whether via
// the confirmation callback or the webhook
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID      string    `json:"order_id"`
	Amount       int64     `json:"amount"`
	PaidAt       time.Time `json:"paid_at"`
	Source       string    `json:"source"`
	StudentEmail string    `json:"student_email,omitempty"`
}

// PaymentFailedEvent published when a payment attempt fails
type PaymentFailedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// RegistrationExpiredEvent published by the sweeper for each expired order
type RegistrationExpiredEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

// Sources for PaymentConfirmedEvent
const (
	ConfirmSourceCallback = "callback"
	ConfirmSourceWebhook  = "webhook"
)
