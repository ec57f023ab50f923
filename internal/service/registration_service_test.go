package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *CreateRegistrationRequest {
	return &CreateRegistrationRequest{
		StudentName:        "김학생",
		StudentNameEnglish: "Kim Student",
		StudentPhone:       "010-1234-5678",
		StudentEmail:       "student@example.com",
		BirthDate:          "2010-03-15",
		Gender:             "female",
		School:             "서울중학교",
		Grade:              "중3",
		ParentName:         "김부모",
		ParentPhone:        "010-8765-4321",
		ParentEmail:        "parent@example.com",
		Address:            "서울특별시 종로구 1",
	}
}

func TestCreateRegistration(t *testing.T) {
	fs := newFakeStore()
	fl := newFakeSlots()
	fp := &fakePublisher{}

	rs := NewRegistrationService(fs, fl, fp, 470000, testAppURL)

	resp, err := rs.CreateRegistration(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.OrderID, "registration-"))
	assert.Equal(t, int64(470000), resp.Amount)
	assert.Equal(t, testAppURL+"/confirm-payment", resp.SuccessURL)
	assert.Equal(t, testAppURL+"/payment/fail", resp.FailURL)

	reg := fs.regs[resp.OrderID]
	require.NotNil(t, reg)
	assert.Equal(t, models.StatusPending, reg.Status)
	assert.Equal(t, models.StatusPending, reg.PaymentStatus)
	assert.Equal(t, int64(470000), reg.Amount)
	assert.False(t, reg.PaidAt.Valid)

	assert.Equal(t, 1, fl.reserved)
	require.Len(t, fp.created, 1)
	assert.Equal(t, resp.OrderID, fp.created[0].OrderID)
}

func TestCreateRegistrationCampFull(t *testing.T) {
	fs := newFakeStore()
	fl := newFakeSlots()
	fl.reserveOK = false

	rs := NewRegistrationService(fs, fl, &fakePublisher{}, 470000, testAppURL)

	_, err := rs.CreateRegistration(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrCampFull)
	assert.Empty(t, fs.regs)
}

func TestCreateRegistrationStoreFailureReleasesSlot(t *testing.T) {
	fs := newFakeStore()
	fs.createErr = errors.New("connection refused")
	fl := newFakeSlots()

	rs := NewRegistrationService(fs, fl, &fakePublisher{}, 470000, testAppURL)

	// The row must be durably recorded before any payment request; when
	// the write fails the caller gets an error, not checkout parameters.
	_, err := rs.CreateRegistration(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, 1, fl.released)
}

func TestGetPaymentStatus(t *testing.T) {
	fs := newFakeStore()
	fs.seed("registration-x", 470000, models.StatusPaid, time.Now())

	rs := NewRegistrationService(fs, newFakeSlots(), &fakePublisher{}, 470000, testAppURL)

	status, err := rs.GetPaymentStatus(context.Background(), "registration-x", "student@example.com")
	require.NoError(t, err)

	assert.Equal(t, "registration-x", status.OrderID)
	assert.Equal(t, models.StatusPaid, status.Status)
	assert.Equal(t, int64(470000), status.Amount)
	assert.Equal(t, "Kim Student", status.StudentName)
}

func TestGetPaymentStatusWrongEmail(t *testing.T) {
	fs := newFakeStore()
	fs.seed("registration-x", 470000, models.StatusPaid, time.Now())

	rs := NewRegistrationService(fs, newFakeSlots(), &fakePublisher{}, 470000, testAppURL)

	_, err := rs.GetPaymentStatus(context.Background(), "registration-x", "other@example.com")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
