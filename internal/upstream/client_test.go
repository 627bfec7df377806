package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, 5*time.Second), srv
}

func TestBearerTokenForwarded(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id": 1, "user_id": 7, "items": []}`))
	}))
	defer srv.Close()

	cart, err := client.GetCart(context.Background(), "token-abc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cart.UserID)
}

func TestMissingTokenShortCircuits(t *testing.T) {
	var hits int32
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	_, err := client.GetCart(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)

	err = client.AddItem(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = client.InitiateMobilePayment(context.Background(), "", "mpesa", "254712345678", 100)
	assert.ErrorIs(t, err, ErrNoToken)

	// no request ever left the client
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestRejectedTokenMapsToUnauthorized(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := client.GetCart(context.Background(), "expired-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := client.GetPaymentStatus(context.Background(), "tok", "TX-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorIsTransient(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.GetCart(context.Background(), "tok")
	assert.True(t, IsTransient(err))
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(srv.URL, time.Second)
	srv.Close()

	_, err := client.GetCart(context.Background(), "tok")
	assert.True(t, IsTransient(err))
}

func TestBusinessRejectionKeepsMessage(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "Insufficient stock"}`))
	}))
	defer srv.Close()

	err := client.AddItem(context.Background(), "tok", 1, 999)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "Insufficient stock", apiErr.Message)
	assert.False(t, IsTransient(err))
}

func TestBusinessRejectionWithoutBody(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := client.ClearCart(context.Background(), "tok")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, http.StatusText(http.StatusConflict), apiErr.Message)
}

func TestInitiateMobilePayment(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/payments/mobile", r.URL.Path)
		w.Write([]byte(`{"transaction_id": "TX-1", "status": "processing"}`))
	}))
	defer srv.Close()

	txID, err := client.InitiateMobilePayment(context.Background(), "tok", "mpesa", "254712345678", 270)
	require.NoError(t, err)
	assert.Equal(t, "TX-1", txID)
}
