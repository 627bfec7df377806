package models

import "time"

// Event types
const (
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypePaymentTimedOut  = "PAYMENT_TIMED_OUT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent published when a watched transaction reaches "completed"
type PaymentCompletedEvent struct {
	BaseEvent
	TransactionID string  `json:"transaction_id"`
	UserID        int64   `json:"user_id"`
	Provider      string  `json:"provider"`
	Amount        float64 `json:"amount"`
	Reference     string  `json:"reference"`
}

// PaymentFailedEvent published when the provider declares the charge failed
type PaymentFailedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	Provider      string `json:"provider"`
	Reason        string `json:"reason"`
}

// PaymentTimedOutEvent published when the poll budget is exhausted while the
// transaction is still processing
type PaymentTimedOutEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	Provider      string `json:"provider"`
	Attempts      int    `json:"attempts"`
}
