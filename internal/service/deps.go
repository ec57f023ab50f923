package service

import (
	"context"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/toss"
)

// Store is the subset of the registration store the services depend on.
// *store.Store satisfies it.
type Store interface {
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	GetRegistrationByOrderID(ctx context.Context, orderID string) (*models.Registration, error)
	GetRegistrationByOrderIDAndEmail(ctx context.Context, orderID, email string) (*models.Registration, error)
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, orderID string) (bool, error)
	ExpirePending(ctx context.Context, olderThan time.Time) ([]string, error)
	InsertPaymentLog(ctx context.Context, entry *models.PaymentLog) error
}

// SlotLedger tracks camp capacity. *redisclient.Client satisfies it.
type SlotLedger interface {
	ReserveSlot(ctx context.Context) (bool, error)
	ReleaseSlot(ctx context.Context) error
	CommitSlot(ctx context.Context) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// PaymentConfirmer is the provider confirm call. *toss.Client satisfies it.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string, amount int64, paymentKey string) (*toss.Payment, error)
}

// EventPublisher publishes lifecycle events. *broker.EventPublisher
// satisfies it.
type EventPublisher interface {
	PublishRegistrationCreated(ctx context.Context, event *models.RegistrationCreatedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishRegistrationExpired(ctx context.Context, event *models.RegistrationExpiredEvent) error
}
