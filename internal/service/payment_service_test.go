package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentBackend struct {
	mu       sync.Mutex
	statuses []string
	calls    int
}

func (f *fakePaymentBackend) InitiateMobilePayment(ctx context.Context, token, provider, phoneNumber string, amount float64) (string, error) {
	return "TX-100", nil
}

func (f *fakePaymentBackend) GetPaymentStatus(ctx context.Context, token, transactionID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.calls++
	return &models.PaymentTransaction{
		TransactionID: transactionID,
		Status:        f.statuses[idx],
		Reference:     "REF-100",
	}, nil
}

type journalUpdate struct {
	txID   string
	status string
	reason string
}

type fakeJournal struct {
	mu      sync.Mutex
	records map[string]*models.PaymentRecord
	updates []journalUpdate
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{records: make(map[string]*models.PaymentRecord)}
}

func (f *fakeJournal) CreatePaymentRecord(ctx context.Context, rec *models.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.TransactionID] = rec
	return nil
}

func (f *fakeJournal) UpdatePaymentStatus(ctx context.Context, transactionID, status, failureReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, journalUpdate{transactionID, status, failureReason})
	if rec, ok := f.records[transactionID]; ok {
		rec.Status = status
		rec.FailureReason = failureReason
	}
	return nil
}

func (f *fakeJournal) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[transactionID]
	if !ok {
		return nil, errors.New("no rows")
	}
	return rec, nil
}

func (f *fakeJournal) GetPaymentsByUserID(ctx context.Context, userID int64) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (f *fakeJournal) GetRecentPayments(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (f *fakeJournal) lastUpdate() (journalUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return journalUpdate{}, false
	}
	return f.updates[len(f.updates)-1], true
}

type fakeEvents struct {
	completed chan *models.PaymentCompletedEvent
	failed    chan *models.PaymentFailedEvent
	timedOut  chan *models.PaymentTimedOutEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		completed: make(chan *models.PaymentCompletedEvent, 1),
		failed:    make(chan *models.PaymentFailedEvent, 1),
		timedOut:  make(chan *models.PaymentTimedOutEvent, 1),
	}
}

func (f *fakeEvents) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	f.completed <- event
	return nil
}

func (f *fakeEvents) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	f.failed <- event
	return nil
}

func (f *fakeEvents) PublishPaymentTimedOut(ctx context.Context, event *models.PaymentTimedOutEvent) error {
	f.timedOut <- event
	return nil
}

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{
		"0712345678",
		"0112345678",
		"254712345678",
		"+254712345678",
		"712345678",
		"0712 345 678",
	}
	for _, phone := range valid {
		assert.True(t, ValidatePhoneNumber(phone), "expected %q to be valid", phone)
	}

	invalid := []string{
		"",
		"12345",
		"0812345678",
		"07123456789",
		"071234567",
		"not-a-number",
	}
	for _, phone := range invalid {
		assert.False(t, ValidatePhoneNumber(phone), "expected %q to be invalid", phone)
	}
}

func TestFormatPhoneNumber(t *testing.T) {
	cases := map[string]string{
		"0712345678":       "254712345678",
		"+254 712 345 678": "254712345678",
		"254712345678":     "254712345678",
		"712345678":        "254712345678",
	}
	for input, want := range cases {
		assert.Equal(t, want, FormatPhoneNumber(input))
	}
}

func paymentRequest() *MobilePaymentRequest {
	return &MobilePaymentRequest{
		Provider:    models.ProviderMPesa,
		PhoneNumber: "0712345678",
		Amount:      270,
	}
}

func TestInitiateMobilePaymentValidation(t *testing.T) {
	ps := NewPaymentService(&fakePaymentBackend{}, newFakeJournal(), newFakeEvents(), fastPoll(3))
	defer ps.Shutdown()
	sess := testSession()

	req := paymentRequest()
	req.Provider = "paypal"
	_, err := ps.InitiateMobilePayment(context.Background(), sess, req)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	req = paymentRequest()
	req.PhoneNumber = "12345"
	_, err = ps.InitiateMobilePayment(context.Background(), sess, req)
	assert.ErrorIs(t, err, ErrInvalidPhone)

	req = paymentRequest()
	req.Amount = 0
	_, err = ps.InitiateMobilePayment(context.Background(), sess, req)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Zero(t, ps.ActiveWatches())
}

func TestInitiateMobilePaymentConfirms(t *testing.T) {
	backend := &fakePaymentBackend{statuses: []string{
		models.PaymentStatusProcessing,
		models.PaymentStatusCompleted,
	}}
	journal := newFakeJournal()
	events := newFakeEvents()
	ps := NewPaymentService(backend, journal, events, fastPoll(30))
	defer ps.Shutdown()
	sess := testSession()

	resp, err := ps.InitiateMobilePayment(context.Background(), sess, paymentRequest())
	require.NoError(t, err)
	assert.Equal(t, "TX-100", resp.TransactionID)
	assert.Equal(t, models.PaymentStatusProcessing, resp.Status)
	assert.Equal(t, "Payment request sent. Please check your phone.", resp.Message)

	select {
	case event := <-events.completed:
		assert.Equal(t, "TX-100", event.TransactionID)
		assert.Equal(t, sess.UserID, event.UserID)
		assert.Equal(t, "REF-100", event.Reference)
		assert.NotEmpty(t, event.EventID)
	case <-time.After(5 * time.Second):
		t.Fatal("no PaymentCompleted event published")
	}

	upd, ok := journal.lastUpdate()
	require.True(t, ok)
	assert.Equal(t, models.JournalStatusCompleted, upd.status)
}

func TestInitiateMobilePaymentTimesOut(t *testing.T) {
	backend := &fakePaymentBackend{statuses: []string{models.PaymentStatusProcessing}}
	journal := newFakeJournal()
	events := newFakeEvents()
	ps := NewPaymentService(backend, journal, events, fastPoll(3))
	defer ps.Shutdown()

	_, err := ps.InitiateMobilePayment(context.Background(), testSession(), paymentRequest())
	require.NoError(t, err)

	select {
	case event := <-events.timedOut:
		assert.Equal(t, "TX-100", event.TransactionID)
		assert.Equal(t, 3, event.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("no PaymentTimedOut event published")
	}

	upd, ok := journal.lastUpdate()
	require.True(t, ok)
	assert.Equal(t, models.JournalStatusTimedOut, upd.status)
	assert.Equal(t, MsgPaymentTimeout, upd.reason)
}

func TestImmediateCompletionLeavesNoWatch(t *testing.T) {
	backend := &fakePaymentBackend{statuses: []string{models.PaymentStatusCompleted}}
	journal := newFakeJournal()
	events := newFakeEvents()
	ps := NewPaymentService(backend, journal, events, fastPoll(30))
	defer ps.Shutdown()

	_, err := ps.InitiateMobilePayment(context.Background(), testSession(), paymentRequest())
	require.NoError(t, err)

	select {
	case <-events.completed:
	case <-time.After(5 * time.Second):
		t.Fatal("no PaymentCompleted event published")
	}

	// a watch resolving on its very first query must still unregister itself
	require.Eventually(t, func() bool { return ps.ActiveWatches() == 0 },
		5*time.Second, 10*time.Millisecond)
	assert.False(t, ps.CancelWatch("TX-100"))
}

func TestCancelWatch(t *testing.T) {
	backend := &fakePaymentBackend{statuses: []string{models.PaymentStatusProcessing}}
	journal := newFakeJournal()
	events := newFakeEvents()
	ps := NewPaymentService(backend, journal, events, PollConfig{Interval: time.Hour, MaxAttempts: 30})
	defer ps.Shutdown()

	_, err := ps.InitiateMobilePayment(context.Background(), testSession(), paymentRequest())
	require.NoError(t, err)
	require.Equal(t, 1, ps.ActiveWatches())

	assert.True(t, ps.CancelWatch("TX-100"))
	assert.Zero(t, ps.ActiveWatches())

	// cancelling again, or cancelling an unknown transaction, is a no-op
	assert.False(t, ps.CancelWatch("TX-100"))
	assert.False(t, ps.CancelWatch("TX-999"))

	// no terminal outcome was recorded or published
	_, updated := journal.lastUpdate()
	assert.False(t, updated)
	select {
	case <-events.completed:
		t.Error("completed event published for a cancelled watch")
	case <-events.timedOut:
		t.Error("timeout event published for a cancelled watch")
	default:
	}
}

func TestShutdownStopsAllWatches(t *testing.T) {
	backend := &fakePaymentBackend{statuses: []string{models.PaymentStatusProcessing}}
	ps := NewPaymentService(backend, newFakeJournal(), newFakeEvents(), PollConfig{Interval: time.Hour, MaxAttempts: 30})

	_, err := ps.InitiateMobilePayment(context.Background(), testSession(), paymentRequest())
	require.NoError(t, err)
	require.Equal(t, 1, ps.ActiveWatches())

	done := make(chan struct{})
	go func() {
		ps.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not drain active watches")
	}
}

func TestGetPaymentStatusPrefersJournal(t *testing.T) {
	backend := &fakePaymentBackend{statuses: []string{models.PaymentStatusProcessing}}
	journal := newFakeJournal()
	ps := NewPaymentService(backend, journal, newFakeEvents(), fastPoll(3))
	defer ps.Shutdown()
	sess := testSession()

	require.NoError(t, journal.CreatePaymentRecord(context.Background(), &models.PaymentRecord{
		UserID:        sess.UserID,
		TransactionID: "TX-200",
		Status:        models.JournalStatusCompleted,
	}))

	rec, err := ps.GetPaymentStatus(context.Background(), sess, "TX-200")
	require.NoError(t, err)
	assert.Equal(t, models.JournalStatusCompleted, rec.Status)

	// unknown to the journal falls back to a live backend query
	rec, err = ps.GetPaymentStatus(context.Background(), sess, "TX-300")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, rec.Status)
	assert.Equal(t, sess.UserID, rec.UserID)
}
