package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sweepLockKey = "expiry-sweep"
const sweepLockTTL = 30 * time.Second

// Sweeper expires stale pending registrations. The status filter lives in
// the same UPDATE as the transition, so a registration that was paid a
// moment before the sweep is never demoted.
type Sweeper struct {
	store          Store
	slots          SlotLedger
	eventPublisher EventPublisher
	logger         *zap.Logger
	pendingTimeout time.Duration
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(store Store, slots SlotLedger, eventPublisher EventPublisher, pendingTimeout time.Duration) *Sweeper {
	return &Sweeper{
		store:          store,
		slots:          slots,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		pendingTimeout: pendingTimeout,
	}
}

// Sweep expires pending registrations older than the configured timeout
// and returns the number of rows affected. A distributed lock keeps
// concurrent instances from double-releasing slots; losing the lock race
// is not an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "Sweeper.Sweep")
	defer span.End()

	util.SweepRunsTotal.Inc()

	acquired, err := s.slots.AcquireLock(ctx, sweepLockKey, sweepLockTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		s.logger.Debug("Sweep lock held elsewhere, skipping run")
		return 0, nil
	}
	defer func() {
		if err := s.slots.ReleaseLock(ctx, sweepLockKey); err != nil {
			s.logger.Error("Failed to release sweep lock", zap.Error(err))
		}
	}()

	cutoff := time.Now().Add(-s.pendingTimeout)

	orderIDs, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, orderID := range orderIDs {
		if err := s.slots.ReleaseSlot(ctx); err != nil {
			s.logger.Error("Failed to release camp slot",
				zap.String("order_id", orderID),
				zap.Error(err))
		}

		event := &models.RegistrationExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeRegistrationExpired,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
		}
		if err := s.eventPublisher.PublishRegistrationExpired(ctx, event); err != nil {
			s.logger.Error("Failed to publish RegistrationExpired event",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}

	if len(orderIDs) > 0 {
		util.RegistrationsExpiredTotal.Add(float64(len(orderIDs)))
		s.logger.Info("Expired stale registrations",
			zap.Int("count", len(orderIDs)))
	}

	return len(orderIDs), nil
}
