package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegistrationService issues orders: it persists a pending registration
// and hands the caller everything the Toss client SDK needs.
type RegistrationService struct {
	store          Store
	slots          SlotLedger
	eventPublisher EventPublisher
	logger         *zap.Logger
	feeAmount      int64
	appBaseURL     string
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(store Store, slots SlotLedger, eventPublisher EventPublisher, feeAmount int64, appBaseURL string) *RegistrationService {
	return &RegistrationService{
		store:          store,
		slots:          slots,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		feeAmount:      feeAmount,
		appBaseURL:     appBaseURL,
	}
}

// CreateRegistrationRequest is the validated applicant form data
type CreateRegistrationRequest struct {
	StudentName        string `json:"student_name" binding:"required"`
	StudentNameEnglish string `json:"student_name_english" binding:"required"`
	StudentPhone       string `json:"student_phone" binding:"required"`
	StudentEmail       string `json:"student_email" binding:"required,email"`
	BirthDate          string `json:"birth_date" binding:"required"`
	Gender             string `json:"gender" binding:"required,oneof=male female"`
	School             string `json:"school" binding:"required"`
	Grade              string `json:"grade" binding:"required"`
	ParentName         string `json:"parent_name" binding:"required"`
	ParentPhone        string `json:"parent_phone" binding:"required"`
	ParentEmail        string `json:"parent_email" binding:"required,email"`
	Address            string `json:"address" binding:"required"`
	Church             string `json:"church,omitempty"`
	SpecialNeeds       string `json:"special_needs,omitempty"`
}

// CreateRegistrationResponse carries the checkout parameters for the
// payment provider's client-side SDK.
type CreateRegistrationResponse struct {
	OrderID    string `json:"order_id"`
	OrderName  string `json:"order_name"`
	Amount     int64  `json:"amount"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
}

// CreateRegistration inserts a pending registration with a fresh order id
// and the configured camp fee. The row must be durably recorded before the
// caller ever contacts the payment provider.
func (rs *RegistrationService) CreateRegistration(ctx context.Context, req *CreateRegistrationRequest) (*CreateRegistrationResponse, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.CreateRegistration")
	defer span.End()

	ok, err := rs.slots.ReserveSlot(ctx)
	if err != nil {
		util.RegistrationsFailedTotal.WithLabelValues("slot_ledger_error").Inc()
		return nil, fmt.Errorf("failed to reserve camp slot: %w", err)
	}
	if !ok {
		util.SlotReservationsFailed.Inc()
		return nil, ErrCampFull
	}

	orderID := fmt.Sprintf("registration-%s", uuid.New().String())

	// A fresh UUID cannot collide in practice; the check guards against a
	// re-submitted order id ever reaching the provider twice.
	existing, err := rs.store.GetRegistrationByOrderID(ctx, orderID)
	if err != nil {
		rs.releaseSlot(ctx, orderID)
		return nil, fmt.Errorf("failed to check existing order: %w", err)
	}
	if existing != nil {
		rs.releaseSlot(ctx, orderID)
		return nil, fmt.Errorf("order id already exists: %s", orderID)
	}

	reg := &models.Registration{
		OrderID:            orderID,
		Amount:             rs.feeAmount,
		Status:             models.StatusPending,
		PaymentStatus:      models.StatusPending,
		StudentName:        req.StudentName,
		StudentNameEnglish: req.StudentNameEnglish,
		StudentPhone:       req.StudentPhone,
		StudentEmail:       req.StudentEmail,
		BirthDate:          req.BirthDate,
		Gender:             req.Gender,
		School:             req.School,
		Grade:              req.Grade,
		ParentName:         req.ParentName,
		ParentPhone:        req.ParentPhone,
		ParentEmail:        req.ParentEmail,
		Address:            req.Address,
		Church:             nullString(req.Church),
		SpecialNeeds:       nullString(req.SpecialNeeds),
	}

	if err := rs.store.CreateRegistration(ctx, reg); err != nil {
		rs.releaseSlot(ctx, orderID)
		util.RegistrationsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	util.RegistrationsCreatedTotal.Inc()
	rs.logger.Info("Registration created",
		zap.String("order_id", orderID),
		zap.Int64("amount", reg.Amount))

	event := &models.RegistrationCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRegistrationCreated,
			Timestamp: time.Now(),
		},
		OrderID:     orderID,
		StudentName: req.StudentName,
		Amount:      reg.Amount,
	}

	if err := rs.eventPublisher.PublishRegistrationCreated(ctx, event); err != nil {
		rs.logger.Error("Failed to publish RegistrationCreated event", zap.Error(err))
	}

	return &CreateRegistrationResponse{
		OrderID:    orderID,
		OrderName:  "English Camp Registration",
		Amount:     reg.Amount,
		SuccessURL: rs.appBaseURL + "/confirm-payment",
		FailURL:    rs.appBaseURL + "/payment/fail",
	}, nil
}

func (rs *RegistrationService) releaseSlot(ctx context.Context, orderID string) {
	if err := rs.slots.ReleaseSlot(ctx); err != nil {
		rs.logger.Error("Failed to release camp slot",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

// PaymentStatus is the public view of a registration's payment state
type PaymentStatus struct {
	OrderID       string     `json:"orderId"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"paymentStatus"`
	Amount        int64      `json:"amount"`
	PaidAt        *time.Time `json:"paidAt"`
	StudentName   string     `json:"studentName"`
}

// GetPaymentStatus looks up a registration by order id and student email.
// The email must match; order ids alone are guessable from redirect URLs.
func (rs *RegistrationService) GetPaymentStatus(ctx context.Context, orderID, email string) (*PaymentStatus, error) {
	reg, err := rs.store.GetRegistrationByOrderIDAndEmail(ctx, orderID, email)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrOrderNotFound
	}

	status := &PaymentStatus{
		OrderID:       reg.OrderID,
		Status:        reg.Status,
		PaymentStatus: reg.PaymentStatus,
		Amount:        reg.Amount,
		StudentName:   reg.StudentName,
	}
	if reg.PaidAt.Valid {
		status.PaidAt = &reg.PaidAt.Time
	}
	return status, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
