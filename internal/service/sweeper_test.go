package service

import (
	"context"
	"testing"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pendingTimeout = 10 * time.Minute

func TestSweepExpiresStalePending(t *testing.T) {
	fs := newFakeStore()
	fl := newFakeSlots()
	fp := &fakePublisher{}
	fs.seed("registration-y", 470000, models.StatusPending, time.Now().Add(-11*time.Minute))

	sweeper := NewSweeper(fs, fl, fp, pendingTimeout)

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, models.StatusExpired, fs.regs["registration-y"].Status)
	assert.Equal(t, models.StatusExpired, fs.regs["registration-y"].PaymentStatus)
	assert.Equal(t, 1, fl.released)
	assert.Len(t, fp.expired, 1)
}

func TestSweepLeavesFreshPendingAlone(t *testing.T) {
	fs := newFakeStore()
	fs.seed("registration-x", 470000, models.StatusPending, time.Now())

	sweeper := NewSweeper(fs, newFakeSlots(), &fakePublisher{}, pendingTimeout)

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, count)
	assert.Equal(t, models.StatusPending, fs.regs["registration-x"].Status)
}

func TestSweepNeverDemotesPaid(t *testing.T) {
	fs := newFakeStore()
	fs.seed("registration-x", 470000, models.StatusPaid, time.Now().Add(-1*time.Hour))

	sweeper := NewSweeper(fs, newFakeSlots(), &fakePublisher{}, pendingTimeout)

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, count)
	assert.Equal(t, models.StatusPaid, fs.regs["registration-x"].Status)
}

// Walks the full lifecycle: a fresh order survives an immediate sweep,
// gets confirmed, and survives a later sweep as paid.
func TestSweepConfirmSweepScenario(t *testing.T) {
	fs := newFakeStore()
	fl := newFakeSlots()
	fp := &fakePublisher{}
	fs.seed("registration-x", 470000, models.StatusPending, time.Now())

	sweeper := NewSweeper(fs, fl, fp, pendingTimeout)
	ps := NewPaymentService(fs, fl, &fakeConfirmer{}, fp, testAppURL)

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	ps.Confirm(context.Background(), &ConfirmParams{
		PaymentKey: "pk-123",
		OrderID:    "registration-x",
		Amount:     470000,
	})
	assert.Equal(t, models.StatusPaid, fs.regs["registration-x"].Status)
	assert.True(t, fs.regs["registration-x"].PaidAt.Valid)

	count, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, models.StatusPaid, fs.regs["registration-x"].Status)
}
