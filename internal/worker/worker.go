package worker

import (
	"context"
	"log"
	"time"

	"github.com/shualoalumin/dics-camp/internal/broker"
	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/service"
	"github.com/shualoalumin/dics-camp/internal/util"

	"go.uber.org/zap"
)

// SweeperWorker runs the expiry sweeper on a fixed interval
type SweeperWorker struct {
	sweeper  *service.Sweeper
	interval time.Duration
}

// NewSweeperWorker creates a new sweeper worker
func NewSweeperWorker(sweeper *service.Sweeper, interval time.Duration) *SweeperWorker {
	return &SweeperWorker{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start runs sweep cycles until the context is cancelled
func (w *SweeperWorker) Start(ctx context.Context) error {
	log.Printf("Starting sweeper worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper worker context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.sweeper.Sweep(ctx); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		}
	}
}

// DedupeStore is the processed-events table the notifier checks before
// acting on a delivery. *store.Store satisfies it.
type DedupeStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotifierWorker consumes payment events and sends the applicant a
// confirmation. Kafka delivers at-least-once, so every event passes
// through the processed_events dedupe before anything is sent.
type NotifierWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	dedupe       DedupeStore
	logger       *zap.Logger
}

// NewNotifierWorker creates a new notifier worker
func NewNotifierWorker(consumer *broker.Consumer, dedupe DedupeStore) *NotifierWorker {
	w := &NotifierWorker{
		consumer: consumer,
		dedupe:   dedupe,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotifierWorker) Start(ctx context.Context) error {
	log.Println("Starting notifier worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotifierWorker) Stop() error {
	log.Println("Stopping notifier worker...")
	return w.consumer.Close()
}

func (w *NotifierWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	processed, err := w.dedupe.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed",
			zap.String("event_id", event.EventID))
		return nil
	}

	// TODO: hand off to the mail relay once SMTP credentials are provisioned.
	w.logger.Info("Registration confirmation notification",
		zap.String("order_id", event.OrderID),
		zap.String("student_email", event.StudentEmail),
		zap.Int64("amount", event.Amount),
		zap.Time("paid_at", event.PaidAt))

	return w.dedupe.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
