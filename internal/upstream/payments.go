package upstream

import (
	"context"
	"net/http"

	"storefront-gateway/internal/models"
)

type mobilePaymentRequest struct {
	Provider    string  `json:"provider"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
}

type mobilePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// InitiateMobilePayment submits a mobile-money charge request and returns the
// opaque transaction ID issued by the backend
func (c *Client) InitiateMobilePayment(ctx context.Context, token, provider, phoneNumber string, amount float64) (string, error) {
	if err := c.authed(token); err != nil {
		return "", err
	}

	req := mobilePaymentRequest{Provider: provider, PhoneNumber: phoneNumber, Amount: amount}
	var resp mobilePaymentResponse
	if err := c.do(ctx, "initiate_payment", http.MethodPost, "/api/payments/mobile", token, req, &resp); err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}

// GetPaymentStatus queries the current state of a transaction
func (c *Client) GetPaymentStatus(ctx context.Context, token, transactionID string) (*models.PaymentTransaction, error) {
	if err := c.authed(token); err != nil {
		return nil, err
	}

	var tx models.PaymentTransaction
	if err := c.do(ctx, "payment_status", http.MethodGet, "/api/payments/status/"+transactionID, token, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
