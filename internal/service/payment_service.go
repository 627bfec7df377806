package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Validation errors, caught before any network call
var (
	ErrInvalidPhone    = errors.New("please enter a valid Kenyan phone number")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrUnknownProvider = errors.New("unsupported payment provider")
)

var kenyanPhoneRe = regexp.MustCompile(`^(\+254|254|0)?[17]\d{8}$`)

// ValidatePhoneNumber reports whether phone is a plausible Kenyan mobile number
func ValidatePhoneNumber(phone string) bool {
	return kenyanPhoneRe.MatchString(strings.ReplaceAll(phone, " ", ""))
}

// FormatPhoneNumber normalizes a phone number to the 254… international form
func FormatPhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "0"):
		return "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "254"):
		return cleaned
	default:
		return "254" + cleaned
	}
}

// PaymentBackend is the slice of the backend API the payment service needs
type PaymentBackend interface {
	InitiateMobilePayment(ctx context.Context, token, provider, phoneNumber string, amount float64) (string, error)
	GetPaymentStatus(ctx context.Context, token, transactionID string) (*models.PaymentTransaction, error)
}

// PaymentJournal records initiations and terminal outcomes locally
type PaymentJournal interface {
	CreatePaymentRecord(ctx context.Context, rec *models.PaymentRecord) error
	UpdatePaymentStatus(ctx context.Context, transactionID, status, failureReason string) error
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error)
	GetPaymentsByUserID(ctx context.Context, userID int64) ([]models.PaymentRecord, error)
	GetRecentPayments(ctx context.Context, limit int) ([]models.PaymentRecord, error)
}

// PaymentEvents publishes terminal payment outcomes to the event bus
type PaymentEvents interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentTimedOut(ctx context.Context, event *models.PaymentTimedOutEvent) error
}

// PaymentService initiates mobile-money charges and watches each transaction
// until it resolves. Watches are bound to the service lifetime, not to the
// initiating request: they survive the HTTP response and are cancelled on
// shutdown (or explicitly by transaction ID), never leaked.
type PaymentService struct {
	backend PaymentBackend
	journal PaymentJournal
	events  PaymentEvents
	cfg     PollConfig
	logger  *zap.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]*PollHandle
}

// NewPaymentService creates a new payment service
func NewPaymentService(backend PaymentBackend, journal PaymentJournal, events PaymentEvents, cfg PollConfig) *PaymentService {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &PaymentService{
		backend:    backend,
		journal:    journal,
		events:     events,
		cfg:        cfg,
		logger:     util.NamedLogger("payments"),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		watches:    make(map[string]*PollHandle),
	}
}

// MobilePaymentRequest is the payload for initiating a mobile-money charge
type MobilePaymentRequest struct {
	Provider    string  `json:"provider" binding:"required"`
	PhoneNumber string  `json:"phone_number" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
}

// MobilePaymentResponse acknowledges an initiated charge
type MobilePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// InitiateMobilePayment validates the request, submits the charge upstream
// and starts a confirmation watch for the returned transaction ID.
func (ps *PaymentService) InitiateMobilePayment(ctx context.Context, sess *models.Session, req *MobilePaymentRequest) (*MobilePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiateMobilePayment")
	defer span.End()

	if req.Provider != models.ProviderMPesa && req.Provider != models.ProviderAirtel {
		return nil, ErrUnknownProvider
	}
	if !ValidatePhoneNumber(req.PhoneNumber) {
		return nil, ErrInvalidPhone
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	phone := FormatPhoneNumber(req.PhoneNumber)

	txID, err := ps.backend.InitiateMobilePayment(ctx, sess.Token, req.Provider, phone, req.Amount)
	if err != nil {
		return nil, err
	}

	util.PaymentsInitiatedTotal.WithLabelValues(req.Provider).Inc()
	ps.logger.Info("Payment initiated",
		zap.String("transaction_id", txID),
		zap.String("provider", req.Provider),
		zap.Int64("user_id", sess.UserID))

	rec := &models.PaymentRecord{
		UserID:        sess.UserID,
		TransactionID: txID,
		Provider:      req.Provider,
		PhoneNumber:   phone,
		Amount:        req.Amount,
		Status:        models.JournalStatusProcessing,
	}
	if err := ps.journal.CreatePaymentRecord(ctx, rec); err != nil {
		// The upstream charge is already in flight; losing the journal row
		// must not abort confirmation.
		ps.logger.Error("Failed to journal payment", zap.String("transaction_id", txID), zap.Error(err))
	}

	ps.startWatch(sess, txID, req.Provider, req.Amount)

	return &MobilePaymentResponse{
		TransactionID: txID,
		Status:        models.PaymentStatusProcessing,
		Message:       "Payment request sent. Please check your phone.",
	}, nil
}

// startWatch begins polling a transaction on the service's root context
func (ps *PaymentService) startWatch(sess *models.Session, txID, provider string, amount float64) {
	start := time.Now()

	fetch := func(ctx context.Context) (*models.PaymentTransaction, error) {
		return ps.backend.GetPaymentStatus(ctx, sess.Token, txID)
	}

	onSuccess := func(tx *models.PaymentTransaction) {
		defer ps.forget(txID)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		util.PaymentsCompletedTotal.WithLabelValues(provider).Inc()
		util.PaymentConfirmationLatency.Observe(time.Since(start).Seconds())
		ps.logger.Info("Payment completed", zap.String("transaction_id", txID))

		if err := ps.journal.UpdatePaymentStatus(ctx, txID, models.JournalStatusCompleted, ""); err != nil {
			ps.logger.Error("Failed to journal completion", zap.String("transaction_id", txID), zap.Error(err))
		}

		event := &models.PaymentCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentCompleted,
				Timestamp: time.Now(),
			},
			TransactionID: txID,
			UserID:        sess.UserID,
			Provider:      provider,
			Amount:        amount,
			Reference:     tx.Reference,
		}
		if err := ps.events.PublishPaymentCompleted(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
		}
	}

	onFailure := func(reason, message string, attempts int) {
		defer ps.forget(txID)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		util.PaymentsFailedTotal.WithLabelValues(provider, reason).Inc()
		ps.logger.Warn("Payment did not complete",
			zap.String("transaction_id", txID),
			zap.String("reason", reason),
			zap.Int("attempts", attempts))

		if reason == FailureReasonTimeout {
			if err := ps.journal.UpdatePaymentStatus(ctx, txID, models.JournalStatusTimedOut, message); err != nil {
				ps.logger.Error("Failed to journal timeout", zap.String("transaction_id", txID), zap.Error(err))
			}
			event := &models.PaymentTimedOutEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypePaymentTimedOut,
					Timestamp: time.Now(),
				},
				TransactionID: txID,
				UserID:        sess.UserID,
				Provider:      provider,
				Attempts:      attempts,
			}
			if err := ps.events.PublishPaymentTimedOut(ctx, event); err != nil {
				ps.logger.Error("Failed to publish PaymentTimedOut event", zap.Error(err))
			}
			return
		}

		if err := ps.journal.UpdatePaymentStatus(ctx, txID, models.JournalStatusFailed, message); err != nil {
			ps.logger.Error("Failed to journal failure", zap.String("transaction_id", txID), zap.Error(err))
		}
		event := &models.PaymentFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentFailed,
				Timestamp: time.Now(),
			},
			TransactionID: txID,
			UserID:        sess.UserID,
			Provider:      provider,
			Reason:        message,
		}
		if err := ps.events.PublishPaymentFailed(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
		}
	}

	// Registration shares a lock with the callbacks' forget, so a watch that
	// resolves on its immediate first query cannot remove the entry before it
	// exists.
	ps.mu.Lock()
	ps.watches[txID] = WatchTransaction(ps.rootCtx, ps.cfg, fetch, onSuccess, onFailure)
	ps.mu.Unlock()
}

// CancelWatch stops polling a transaction without recording an outcome.
// Used when the caller abandons the payment.
func (ps *PaymentService) CancelWatch(transactionID string) bool {
	ps.mu.Lock()
	handle, ok := ps.watches[transactionID]
	ps.mu.Unlock()
	if !ok {
		return false
	}

	handle.Cancel()
	<-handle.Done()
	ps.forget(transactionID)
	ps.logger.Info("Payment watch cancelled", zap.String("transaction_id", transactionID))
	return true
}

// ActiveWatches reports how many transactions are currently being polled
func (ps *PaymentService) ActiveWatches() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.watches)
}

// Shutdown cancels every active watch and waits for the pollers to exit
func (ps *PaymentService) Shutdown() {
	ps.rootCancel()

	ps.mu.Lock()
	handles := make([]*PollHandle, 0, len(ps.watches))
	for _, h := range ps.watches {
		handles = append(handles, h)
	}
	ps.mu.Unlock()

	for _, h := range handles {
		<-h.Done()
	}
}

func (ps *PaymentService) forget(transactionID string) {
	ps.mu.Lock()
	delete(ps.watches, transactionID)
	ps.mu.Unlock()
}

// GetPaymentStatus serves a transaction's state from the journal, falling
// back to a live backend query when the journal has no row for it
func (ps *PaymentService) GetPaymentStatus(ctx context.Context, sess *models.Session, transactionID string) (*models.PaymentRecord, error) {
	rec, err := ps.journal.GetPaymentByTransactionID(ctx, transactionID)
	if err == nil {
		return rec, nil
	}

	tx, err := ps.backend.GetPaymentStatus(ctx, sess.Token, transactionID)
	if err != nil {
		return nil, err
	}
	return &models.PaymentRecord{
		UserID:        sess.UserID,
		TransactionID: tx.TransactionID,
		Provider:      tx.Provider,
		PhoneNumber:   tx.PhoneNumber,
		Amount:        tx.Amount,
		Status:        tx.Status,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}, nil
}

// PaymentHistory lists a user's journaled payments, newest first
func (ps *PaymentService) PaymentHistory(ctx context.Context, userID int64) ([]models.PaymentRecord, error) {
	return ps.journal.GetPaymentsByUserID(ctx, userID)
}

// RecentPayments lists the latest journal entries for the back-office
func (ps *PaymentService) RecentPayments(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	return ps.journal.GetRecentPayments(ctx, limit)
}
