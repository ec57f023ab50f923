package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
)

// CreateRegistration inserts a new pending registration. The unique
// constraint on order_id is the re-submission guard of last resort.
func (s *Store) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (
			order_id, amount, status, payment_status,
			student_name, student_name_english, student_phone, student_email,
			birth_date, gender, school, grade,
			parent_name, parent_phone, parent_email,
			address, church, special_needs
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18
		)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, reg, query,
		reg.OrderID, reg.Amount, reg.Status, reg.PaymentStatus,
		reg.StudentName, reg.StudentNameEnglish, reg.StudentPhone, reg.StudentEmail,
		reg.BirthDate, reg.Gender, reg.School, reg.Grade,
		reg.ParentName, reg.ParentPhone, reg.ParentEmail,
		reg.Address, reg.Church, reg.SpecialNeeds)
}

// GetRegistrationByOrderID retrieves a registration by order id.
// Returns (nil, nil) when no row matches.
func (s *Store) GetRegistrationByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	var reg models.Registration
	err := s.db.GetContext(ctx, &reg, "SELECT * FROM registrations WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetRegistrationByOrderIDAndEmail retrieves a registration for the status
// check endpoint; the email acts as a weak access token.
func (s *Store) GetRegistrationByOrderIDAndEmail(ctx context.Context, orderID, email string) (*models.Registration, error) {
	var reg models.Registration
	err := s.db.GetContext(ctx, &reg,
		"SELECT * FROM registrations WHERE order_id = $1 AND student_email = $2", orderID, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// MarkPaid transitions a registration to paid with compare-and-set
// semantics. Only pending and expired rows are eligible: a paid row is
// never touched again (duplicate-delivery protection) and a failed row
// stays failed. Expired rows are eligible because the webhook settlement
// is authoritative even when it arrives after the sweeper.
// Returns true if this call performed the transition.
func (s *Store) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, payment_status = $1, paid_at = $2, updated_at = NOW()
		WHERE order_id = $3 AND status IN ($4, $5)`,
		models.StatusPaid, paidAt, orderID, models.StatusPending, models.StatusExpired)
	if err != nil {
		return false, fmt.Errorf("failed to mark paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkFailed transitions a registration to failed, only from pending.
func (s *Store) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, payment_status = $1, updated_at = NOW()
		WHERE order_id = $2 AND status = $3`,
		models.StatusFailed, orderID, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpirePending bulk-transitions stale pending registrations to expired.
// The status filter rides in the same UPDATE so a row that became paid a
// moment earlier is never demoted. Returns the affected order ids.
func (s *Store) ExpirePending(ctx context.Context, olderThan time.Time) ([]string, error) {
	var orderIDs []string
	err := s.db.SelectContext(ctx, &orderIDs, `
		UPDATE registrations
		SET status = $1, payment_status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3
		RETURNING order_id`,
		models.StatusExpired, models.StatusPending, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending registrations: %w", err)
	}
	return orderIDs, nil
}

// InsertPaymentLog appends a row to the audit log
func (s *Store) InsertPaymentLog(ctx context.Context, entry *models.PaymentLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_logs (order_id, event_type, event_data, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.OrderID, entry.EventType, entry.EventData, entry.IPAddress, entry.UserAgent)
	return err
}

// GetPaymentLogsByOrderID retrieves the audit trail for an order
func (s *Store) GetPaymentLogsByOrderID(ctx context.Context, orderID string) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	err := s.db.SelectContext(ctx, &logs,
		"SELECT * FROM payment_logs WHERE order_id = $1 ORDER BY created_at", orderID)
	return logs, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
