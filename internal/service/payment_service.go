package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/toss"
	"github.com/shualoalumin/dics-camp/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService handles the synchronous confirmation callback: the user
// returns from the Toss checkout and we must verify the amount, confirm
// server-to-server, and transition the registration.
type PaymentService struct {
	store          Store
	slots          SlotLedger
	confirmer      PaymentConfirmer
	eventPublisher EventPublisher
	logger         *zap.Logger
	appBaseURL     string
}

// NewPaymentService creates a new payment confirmation service
func NewPaymentService(store Store, slots SlotLedger, confirmer PaymentConfirmer, eventPublisher EventPublisher, appBaseURL string) *PaymentService {
	return &PaymentService{
		store:          store,
		slots:          slots,
		confirmer:      confirmer,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		appBaseURL:     appBaseURL,
	}
}

// ConfirmParams carries the provider redirect parameters plus requester
// metadata for the audit log.
type ConfirmParams struct {
	PaymentKey string
	OrderID    string
	Amount     int64
	IPAddress  string
	UserAgent  string
}

// Confirm runs the confirmation flow and returns the URL the user should
// be redirected to. Every outcome is a redirect; internal failures are
// logged and audited, never surfaced as 5xx to the returning browser.
func (ps *PaymentService) Confirm(ctx context.Context, params *ConfirmParams) string {
	ctx, span := util.StartSpan(ctx, "PaymentService.Confirm")
	defer span.End()

	util.PaymentConfirmAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentConfirmLatency.Observe(time.Since(start).Seconds())
	}()

	reg, err := ps.store.GetRegistrationByOrderID(ctx, params.OrderID)
	if err != nil {
		ps.logger.Error("Failed to look up registration",
			zap.String("order_id", params.OrderID),
			zap.Error(err))
		util.PaymentFailedTotal.WithLabelValues("db_error").Inc()
		return ps.FailRedirect(params.OrderID, "Unable to verify the order. Please try again.")
	}
	if reg == nil {
		ps.logger.Warn("Confirmation for unknown order",
			zap.String("order_id", params.OrderID))
		util.PaymentFailedTotal.WithLabelValues("order_not_found").Inc()
		return ps.FailRedirect(params.OrderID, "Order not found.")
	}

	// Duplicate-callback protection: an order that already reached paid is
	// an idempotent success. The provider confirm API must not be called a
	// second time for the same order.
	if reg.Status == models.StatusPaid || reg.PaymentStatus == models.StatusPaid {
		ps.logger.Info("Duplicate payment confirmation",
			zap.String("order_id", params.OrderID),
			zap.String("status", reg.Status))
		return ps.SuccessRedirect(params.OrderID)
	}

	if reg.Amount != params.Amount {
		ps.logger.Error("Payment amount mismatch",
			zap.String("order_id", params.OrderID),
			zap.Int64("stored_amount", reg.Amount),
			zap.Int64("request_amount", params.Amount))
		util.PaymentFailedTotal.WithLabelValues("amount_mismatch").Inc()
		ps.audit(ctx, params, models.LogEventPaymentFailed, map[string]interface{}{
			"reason":        "amount_mismatch",
			"storedAmount":  reg.Amount,
			"requestAmount": params.Amount,
		})
		return ps.FailRedirect(params.OrderID, "Payment amount does not match the order.")
	}

	ps.audit(ctx, params, models.LogEventPaymentStarted, map[string]interface{}{
		"orderId":    params.OrderID,
		"amount":     params.Amount,
		"paymentKey": params.PaymentKey,
	})

	// The stored amount, not the redirect parameter, is what gets confirmed.
	payment, err := ps.confirmer.ConfirmPayment(ctx, params.OrderID, reg.Amount, params.PaymentKey)
	if err != nil {
		return ps.handleConfirmFailure(ctx, params, err)
	}

	paidAt := payment.ApprovedAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	wasExpired := reg.Status == models.StatusExpired

	applied, err := ps.store.MarkPaid(ctx, params.OrderID, paidAt)
	if err != nil {
		// The provider accepted and the money has moved; the user still
		// sees success. Operators must reconcile this row by hand.
		ps.logger.Error("CRITICAL: DB update failed after payment confirmation",
			zap.String("order_id", params.OrderID),
			zap.String("marker", "reconciliation_required"),
			zap.Error(err))
		util.PaymentReconciliationNeeded.Inc()
		return ps.SuccessRedirect(params.OrderID)
	}

	if !applied {
		// The webhook settled this order between the lookup and the CAS;
		// it already committed the slot and counted the payment.
		ps.logger.Info("Paid transition already applied",
			zap.String("order_id", params.OrderID))
		return ps.SuccessRedirect(params.OrderID)
	}

	// An expired row had its slot released by the sweeper; take a fresh
	// one instead of committing a reservation that no longer exists.
	if wasExpired {
		if _, err := ps.slots.ReserveSlot(ctx); err != nil {
			ps.logger.Error("Failed to re-reserve slot for resurrected order",
				zap.String("order_id", params.OrderID),
				zap.Error(err))
		}
	}
	if err := ps.slots.CommitSlot(ctx); err != nil {
		ps.logger.Error("Failed to commit camp slot",
			zap.String("order_id", params.OrderID),
			zap.Error(err))
	}
	ps.publishConfirmed(ctx, reg, paidAt, models.ConfirmSourceCallback)

	util.PaymentConfirmedTotal.Inc()
	ps.logger.Info("Payment confirmed",
		zap.String("order_id", params.OrderID),
		zap.Int64("amount", reg.Amount))

	ps.audit(ctx, params, models.LogEventPaymentCompleted, map[string]interface{}{
		"orderId":        params.OrderID,
		"finalAmount":    reg.Amount,
		"processingTime": time.Since(start).Milliseconds(),
	})

	return ps.SuccessRedirect(params.OrderID)
}

// handleConfirmFailure maps a provider rejection to a failed registration
// and a fail redirect carrying the provider's message.
func (ps *PaymentService) handleConfirmFailure(ctx context.Context, params *ConfirmParams, err error) string {
	var apiErr *toss.APIError
	if errors.As(err, &apiErr) {
		ps.logger.Warn("Toss rejected payment confirmation",
			zap.String("order_id", params.OrderID),
			zap.String("code", apiErr.Code),
			zap.String("message", apiErr.Message))
		util.PaymentFailedTotal.WithLabelValues("provider_rejected").Inc()

		applied, markErr := ps.store.MarkFailed(ctx, params.OrderID)
		if markErr != nil {
			ps.logger.Error("Failed to mark registration failed",
				zap.String("order_id", params.OrderID),
				zap.Error(markErr))
		}
		if applied {
			if releaseErr := ps.slots.ReleaseSlot(ctx); releaseErr != nil {
				ps.logger.Error("Failed to release camp slot",
					zap.String("order_id", params.OrderID),
					zap.Error(releaseErr))
			}
		}

		ps.publishFailed(ctx, params.OrderID, apiErr.Code)
		ps.audit(ctx, params, models.LogEventPaymentFailed, map[string]interface{}{
			"reason":  "provider_rejected",
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
		return ps.FailRedirect(params.OrderID,
			fmt.Sprintf("Payment confirmation failed: %s (code: %s)", apiErr.Message, apiErr.Code))
	}

	// Network-class failure: outcome unknown, so the row stays pending for
	// the webhook or the sweeper to settle.
	ps.logger.Error("Toss confirm call failed",
		zap.String("order_id", params.OrderID),
		zap.Error(err))
	util.PaymentFailedTotal.WithLabelValues("provider_unreachable").Inc()
	ps.audit(ctx, params, models.LogEventPaymentFailed, map[string]interface{}{
		"reason": "provider_unreachable",
		"error":  err.Error(),
	})
	return ps.FailRedirect(params.OrderID, "Payment confirmation could not be completed. Please try again.")
}

func (ps *PaymentService) publishConfirmed(ctx context.Context, reg *models.Registration, paidAt time.Time, source string) {
	event := &models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentConfirmed,
			Timestamp: time.Now(),
		},
		OrderID:      reg.OrderID,
		Amount:       reg.Amount,
		PaidAt:       paidAt,
		Source:       source,
		StudentEmail: reg.StudentEmail,
	}
	if err := ps.eventPublisher.PublishPaymentConfirmed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentConfirmed event",
			zap.String("order_id", reg.OrderID),
			zap.Error(err))
	}
}

func (ps *PaymentService) publishFailed(ctx context.Context, orderID, reason string) {
	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
		Reason:  reason,
	}
	if err := ps.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

// audit appends to payment_logs; a failed audit write never aborts the
// payment flow.
func (ps *PaymentService) audit(ctx context.Context, params *ConfirmParams, eventType string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		ps.logger.Error("Failed to marshal audit payload", zap.Error(err))
		return
	}

	entry := &models.PaymentLog{
		OrderID:   params.OrderID,
		EventType: eventType,
		EventData: payload,
		IPAddress: sql.NullString{String: params.IPAddress, Valid: params.IPAddress != ""},
		UserAgent: sql.NullString{String: params.UserAgent, Valid: params.UserAgent != ""},
	}
	if err := ps.store.InsertPaymentLog(ctx, entry); err != nil {
		ps.logger.Error("Failed to write payment log",
			zap.String("order_id", params.OrderID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// SuccessRedirect builds the success-page URL for an order
func (ps *PaymentService) SuccessRedirect(orderID string) string {
	return fmt.Sprintf("%s/payment/success?orderId=%s", ps.appBaseURL, url.QueryEscape(orderID))
}

// FailRedirect builds the failure-page URL carrying a message parameter
func (ps *PaymentService) FailRedirect(orderID, message string) string {
	return fmt.Sprintf("%s/payment/fail?message=%s&orderId=%s",
		ps.appBaseURL, url.QueryEscape(message), url.QueryEscape(orderID))
}
