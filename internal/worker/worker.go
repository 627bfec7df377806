package worker

import (
	"context"
	"errors"

	"storefront-gateway/internal/broker"
	"storefront-gateway/internal/models"
	"storefront-gateway/internal/service"
	"storefront-gateway/internal/session"
	"storefront-gateway/internal/store"
	"storefront-gateway/internal/util"

	"go.uber.org/zap"
)

// CheckoutWorker finishes checkouts in the background: when a watched payment
// completes, the payer's cart is cleared upstream. Failures and timeouts are
// logged only; their journal rows were already updated by the watcher.
type CheckoutWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewCheckoutWorker creates a new checkout worker
func NewCheckoutWorker(consumer *broker.Consumer, carts *service.CartService, sessions *session.Store, db *store.Store) *CheckoutWorker {
	logger := util.NamedLogger("checkout")
	handler := broker.NewEventHandler()

	handler.OnPaymentCompleted(func(ctx context.Context, event *models.PaymentCompletedEvent) error {
		processed, err := db.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}

		sess, err := sessions.GetByUser(ctx, event.UserID)
		switch {
		case errors.Is(err, session.ErrNotFound):
			// User logged out between initiation and confirmation; the cart
			// will be reconciled on their next login.
			logger.Warn("No session for paid user, skipping cart clear",
				zap.Int64("user_id", event.UserID),
				zap.String("transaction_id", event.TransactionID))
		case err != nil:
			return err
		default:
			if _, err := carts.Clear(ctx, sess); err != nil {
				logger.Error("Failed to clear cart after payment",
					zap.Int64("user_id", event.UserID),
					zap.Error(err))
				return err
			}
			logger.Info("Checkout completed, cart cleared",
				zap.Int64("user_id", event.UserID),
				zap.String("transaction_id", event.TransactionID))
		}

		return db.MarkEventProcessed(ctx, event.EventID, event.EventType)
	})

	handler.OnPaymentFailed(func(ctx context.Context, event *models.PaymentFailedEvent) error {
		logger.Warn("Payment failed",
			zap.String("transaction_id", event.TransactionID),
			zap.String("reason", event.Reason))
		return db.MarkEventProcessed(ctx, event.EventID, event.EventType)
	})

	handler.OnPaymentTimedOut(func(ctx context.Context, event *models.PaymentTimedOutEvent) error {
		logger.Warn("Payment timed out",
			zap.String("transaction_id", event.TransactionID),
			zap.Int("attempts", event.Attempts))
		return db.MarkEventProcessed(ctx, event.EventID, event.EventType)
	})

	return &CheckoutWorker{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start starts the worker
func (w *CheckoutWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting checkout worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *CheckoutWorker) Stop() error {
	w.logger.Info("Stopping checkout worker")
	return w.consumer.Close()
}
