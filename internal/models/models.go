package models

import (
	"database/sql"
	"time"
)

// Registration represents a camp application. One row per submission,
// keyed by OrderID. Rows are never deleted; they double as the audit
// trail of every payment attempt.
type Registration struct {
	ID                 int64          `db:"id" json:"id"`
	OrderID            string         `db:"order_id" json:"order_id"`
	Amount             int64          `db:"amount" json:"amount"`
	Status             string         `db:"status" json:"status"`
	PaymentStatus      string         `db:"payment_status" json:"payment_status"`
	PaidAt             sql.NullTime   `db:"paid_at" json:"paid_at,omitempty"`
	StudentName        string         `db:"student_name" json:"student_name"`
	StudentNameEnglish string         `db:"student_name_english" json:"student_name_english"`
	StudentPhone       string         `db:"student_phone" json:"student_phone"`
	StudentEmail       string         `db:"student_email" json:"student_email"`
	BirthDate          string         `db:"birth_date" json:"birth_date"`
	Gender             string         `db:"gender" json:"gender"`
	School             string         `db:"school" json:"school"`
	Grade              string         `db:"grade" json:"grade"`
	ParentName         string         `db:"parent_name" json:"parent_name"`
	ParentPhone        string         `db:"parent_phone" json:"parent_phone"`
	ParentEmail        string         `db:"parent_email" json:"parent_email"`
	Address            string         `db:"address" json:"address"`
	Church             sql.NullString `db:"church" json:"church,omitempty"`
	SpecialNeeds       sql.NullString `db:"special_needs" json:"special_needs,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Registration statuses. Pending is initial; paid, failed and expired are
// terminal. No transition out of paid is ever permitted.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusExpired = "expired"
)

// PaymentLog is an append-only audit record of a state-changing attempt.
type PaymentLog struct {
	ID        int64          `db:"id" json:"id"`
	OrderID   string         `db:"order_id" json:"order_id"`
	EventType string         `db:"event_type" json:"event_type"`
	EventData []byte         `db:"event_data" json:"event_data"`
	IPAddress sql.NullString `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent sql.NullString `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Payment log event types written by the confirmation handler.
const (
	LogEventPaymentStarted   = "payment_started"
	LogEventPaymentCompleted = "payment_completed"
	LogEventPaymentFailed    = "payment_failed"
	LogEventWebhookReceived  = "webhook_received"
	LogEventWebhookIgnored   = "webhook_ignored"
)

// ProcessedEvent for consumer-side idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
