package service

import (
	"context"
	"time"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/util"

	"go.uber.org/zap"
)

// Fixed user-facing messages. A poll-budget timeout is reported distinctly
// from a provider-declared failure.
const (
	MsgPaymentFailed  = "Payment failed or was cancelled"
	MsgPaymentTimeout = "Payment timeout. Please try again."
)

// Failure reasons passed to the failure callback
const (
	FailureReasonDeclined = "declined"
	FailureReasonTimeout  = "timeout"
)

// StatusFunc queries the current state of a transaction
type StatusFunc func(ctx context.Context) (*models.PaymentTransaction, error)

// PollConfig bounds the confirmation poll
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// PollHandle is a cancellable status watch. Cancel stops the poll without
// invoking either callback; Done is closed once the watch goroutine exits.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the watch
func (h *PollHandle) Cancel() { h.cancel() }

// Done reports watch termination
func (h *PollHandle) Done() <-chan struct{} { return h.done }

// WatchTransaction polls a transaction's status until it reaches a terminal
// state or the attempt budget is exhausted. Exactly one of onSuccess and
// onFailure is invoked, exactly once, unless the watch is cancelled first.
// A transient error on a single query is logged and swallowed; it consumes an
// attempt slot but does not abort the loop.
func WatchTransaction(ctx context.Context, cfg PollConfig, fetch StatusFunc, onSuccess func(*models.PaymentTransaction), onFailure func(reason, message string, attempts int)) *PollHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{cancel: cancel, done: make(chan struct{})}
	logger := util.NamedLogger("poller")

	go func() {
		defer close(h.done)
		defer cancel()

		timer := time.NewTimer(0) // first query is immediate
		defer timer.Stop()

		for attempt := 1; ; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			tx, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				util.PaymentPollErrorsTotal.Inc()
				logger.Warn("Status query failed, will retry",
					zap.Int("attempt", attempt),
					zap.Error(err))
			} else {
				switch tx.Status {
				case models.PaymentStatusCompleted:
					util.PaymentPollAttempts.Observe(float64(attempt))
					onSuccess(tx)
					return
				case models.PaymentStatusFailed:
					util.PaymentPollAttempts.Observe(float64(attempt))
					onFailure(FailureReasonDeclined, MsgPaymentFailed, attempt)
					return
				}
			}

			if attempt >= cfg.MaxAttempts {
				util.PaymentPollAttempts.Observe(float64(attempt))
				onFailure(FailureReasonTimeout, MsgPaymentTimeout, attempt)
				return
			}

			timer.Reset(cfg.Interval)
		}
	}()

	return h
}
