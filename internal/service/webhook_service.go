package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/toss"
	"github.com/shualoalumin/dics-camp/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookService processes provider-signed settlement callbacks. It is the
// authoritative path: it runs without a browser session and must converge
// with the confirmation callback regardless of arrival order.
type WebhookService struct {
	store          Store
	slots          SlotLedger
	eventPublisher EventPublisher
	logger         *zap.Logger
	webhookSecret  string
}

// NewWebhookService creates a new webhook service
func NewWebhookService(store Store, slots SlotLedger, eventPublisher EventPublisher, webhookSecret string) *WebhookService {
	return &WebhookService{
		store:          store,
		slots:          slots,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		webhookSecret:  webhookSecret,
	}
}

// HandleWebhook verifies and dispatches a raw webhook delivery.
// ErrInvalidSignature and malformed payloads are the only errors that
// reach the caller; everything past verification answers 200 so the
// provider does not retry deliveries we have already settled.
func (ws *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signature, ipAddress, userAgent string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleWebhook")
	defer span.End()

	// Raw body first: parsing before verification would let an attacker
	// choose what gets parsed.
	if !toss.VerifySignature(payload, signature, ws.webhookSecret) {
		util.WebhooksRejectedTotal.Inc()
		ws.logger.Warn("Webhook signature verification failed",
			zap.String("ip", ipAddress))
		return ErrInvalidSignature
	}

	event, err := toss.ParseWebhookEvent(payload)
	if err != nil {
		return err
	}

	util.WebhooksReceivedTotal.WithLabelValues(event.EventType).Inc()

	switch event.EventType {
	case toss.EventPaymentAuthorized:
		return ws.handleAuthorized(ctx, event, ipAddress, userAgent)
	case toss.EventPaymentFailed:
		return ws.handleFailed(ctx, event, ipAddress, userAgent)
	default:
		ws.logger.Debug("Ignoring webhook event type",
			zap.String("event_type", event.EventType))
		ws.audit(ctx, event.Data.OrderID, models.LogEventWebhookIgnored, event, ipAddress, userAgent)
		return nil
	}
}

func (ws *WebhookService) handleAuthorized(ctx context.Context, event *toss.WebhookEvent, ipAddress, userAgent string) error {
	orderID := event.Data.OrderID

	reg, err := ws.store.GetRegistrationByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if reg == nil {
		// Unknown orders answer 200; a non-2xx would make the provider
		// retry a delivery we can never apply.
		ws.logger.Warn("Webhook for unknown order",
			zap.String("order_id", orderID),
			zap.String("event_type", event.EventType))
		return nil
	}

	paidAt := event.CreatedAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	wasExpired := reg.Status == models.StatusExpired

	applied, err := ws.store.MarkPaid(ctx, orderID, paidAt)
	if err != nil {
		return err
	}
	if !applied {
		// Already paid (or failed): replaying the same event is a no-op.
		ws.logger.Info("Webhook paid transition not applied",
			zap.String("order_id", orderID),
			zap.String("status", reg.Status))
		return nil
	}

	// An expired row had its slot released by the sweeper; take a fresh
	// one instead of committing a reservation that no longer exists.
	if wasExpired {
		if _, err := ws.slots.ReserveSlot(ctx); err != nil {
			ws.logger.Error("Failed to re-reserve slot for resurrected order",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}
	if err := ws.slots.CommitSlot(ctx); err != nil {
		ws.logger.Error("Failed to commit camp slot",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	util.PaymentConfirmedTotal.Inc()
	ws.logger.Info("Webhook settled payment",
		zap.String("order_id", orderID),
		zap.Bool("resurrected_expired", wasExpired))

	ws.audit(ctx, orderID, models.LogEventWebhookReceived, event, ipAddress, userAgent)

	ws.publishConfirmed(ctx, reg, paidAt)
	return nil
}

func (ws *WebhookService) handleFailed(ctx context.Context, event *toss.WebhookEvent, ipAddress, userAgent string) error {
	orderID := event.Data.OrderID

	reg, err := ws.store.GetRegistrationByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if reg == nil {
		ws.logger.Warn("Webhook for unknown order",
			zap.String("order_id", orderID),
			zap.String("event_type", event.EventType))
		return nil
	}

	applied, err := ws.store.MarkFailed(ctx, orderID)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if err := ws.slots.ReleaseSlot(ctx); err != nil {
		ws.logger.Error("Failed to release camp slot",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	ws.logger.Info("Webhook marked payment failed",
		zap.String("order_id", orderID))

	ws.audit(ctx, orderID, models.LogEventWebhookReceived, event, ipAddress, userAgent)

	failedEvent := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
		Reason:  "provider_webhook_failed",
	}
	if err := ws.eventPublisher.PublishPaymentFailed(ctx, failedEvent); err != nil {
		ws.logger.Error("Failed to publish PaymentFailed event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
	return nil
}

func (ws *WebhookService) publishConfirmed(ctx context.Context, reg *models.Registration, paidAt time.Time) {
	event := &models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentConfirmed,
			Timestamp: time.Now(),
		},
		OrderID:      reg.OrderID,
		Amount:       reg.Amount,
		PaidAt:       paidAt,
		Source:       models.ConfirmSourceWebhook,
		StudentEmail: reg.StudentEmail,
	}
	if err := ws.eventPublisher.PublishPaymentConfirmed(ctx, event); err != nil {
		ws.logger.Error("Failed to publish PaymentConfirmed event",
			zap.String("order_id", reg.OrderID),
			zap.Error(err))
	}
}

func (ws *WebhookService) audit(ctx context.Context, orderID, eventType string, event *toss.WebhookEvent, ipAddress, userAgent string) {
	payload, err := json.Marshal(event)
	if err != nil {
		ws.logger.Error("Failed to marshal audit payload", zap.Error(err))
		return
	}

	entry := &models.PaymentLog{
		OrderID:   orderID,
		EventType: eventType,
		EventData: payload,
		IPAddress: sql.NullString{String: ipAddress, Valid: ipAddress != ""},
		UserAgent: sql.NullString{String: userAgent, Valid: userAgent != ""},
	}
	if err := ws.store.InsertPaymentLog(ctx, entry); err != nil {
		ws.logger.Error("Failed to write payment log",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}
