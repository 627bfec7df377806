package models

import "time"

// Product is the catalog subset the storefront needs for pricing
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	IsImported  bool    `json:"is_imported"`
	ShippingFee float64 `json:"shipping_fee"`
	Stock       int     `json:"stock"`
}

// CartItem represents one line in a cart. Price is a snapshot of the
// product's unit price taken when the item was added, not recomputed live.
type CartItem struct {
	ID       int64   `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Cart is the authoritative server-side cart as fetched from the backend
type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartTotals holds amounts derived from the item collection.
// Computed on demand, never persisted.
type CartTotals struct {
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total"`
	ItemCount   int     `json:"item_count"`
}

// PaymentTransaction mirrors the backend's view of a mobile-money charge
type PaymentTransaction struct {
	TransactionID string    `json:"transaction_id"`
	Provider      string    `json:"provider"`
	PhoneNumber   string    `json:"phone_number"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	Reference     string    `json:"reference"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Payment statuses as reported by the backend
const (
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
)

// Supported mobile-money providers
const (
	ProviderMPesa  = "mpesa"
	ProviderAirtel = "airtel"
)

// Journal statuses. The journal keeps a provider-declared failure distinct
// from a poll-budget timeout even though both are terminal.
const (
	JournalStatusProcessing = "processing"
	JournalStatusCompleted  = "completed"
	JournalStatusFailed     = "failed"
	JournalStatusTimedOut   = "timed_out"
)

// PaymentRecord is one row in the local payment journal
type PaymentRecord struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	Provider      string    `db:"provider" json:"provider"`
	PhoneNumber   string    `db:"phone_number" json:"phone_number"`
	Amount        float64   `db:"amount" json:"amount"`
	Status        string    `db:"status" json:"status"`
	FailureReason string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// User roles as reported by the backend on login
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Session binds a gateway session to an upstream bearer token
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
