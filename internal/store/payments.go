package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-gateway/internal/models"
)

// CreatePaymentRecord journals a newly initiated payment
func (s *Store) CreatePaymentRecord(ctx context.Context, rec *models.PaymentRecord) error {
	query := `
		INSERT INTO payment_journal (user_id, transaction_id, provider, phone_number, amount, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, '')
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, rec, query,
		rec.UserID, rec.TransactionID, rec.Provider, rec.PhoneNumber, rec.Amount, rec.Status)
}

// GetPaymentByTransactionID retrieves a journal entry
func (s *Store) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM payment_journal WHERE transaction_id = $1", transactionID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found: %s", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdatePaymentStatus records a transaction's terminal (or refreshed) state
func (s *Store) UpdatePaymentStatus(ctx context.Context, transactionID, status, failureReason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_journal SET status = $1, failure_reason = $2, updated_at = NOW() WHERE transaction_id = $3",
		status, failureReason, transactionID)
	return err
}

// GetPaymentsByUserID retrieves a user's payment history, newest first
func (s *Store) GetPaymentsByUserID(ctx context.Context, userID int64) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM payment_journal WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return recs, err
}

// GetRecentPayments retrieves the latest journal entries for the back-office
func (s *Store) GetRecentPayments(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM payment_journal ORDER BY created_at DESC LIMIT $1", limit)
	return recs, err
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
