// Package mailer drains the mail queue. The HTTP flow only ever enqueues;
// this package is the sole consumer, so a crashed dispatch leaves the
// request claimable again after the next restart rather than losing it.
package mailer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"github.com/ldelange/invitation/internal/storage"
)

// MaxAttempts is the number of delivery tries before a request is parked
// in the failed state for manual inspection.
const MaxAttempts = 5

// Dispatcher polls the store for pending mail and hands each request to
// the Sender. One dispatcher per deployment is assumed; the claim is
// atomic regardless, so running two is wasteful but not incorrect.
type Dispatcher struct {
	store  storage.Store
	sender Sender
	logger *slog.Logger

	// PollInterval is the idle delay between queue checks.
	PollInterval time.Duration
}

func NewDispatcher(store storage.Store, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:        store,
		sender:       sender,
		logger:       logger,
		PollInterval: 15 * time.Second,
	}
}

// Run drains the queue until ctx is cancelled. Store errors back off
// exponentially instead of hot-looping against a down database.
func (d *Dispatcher) Run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    d.PollInterval,
		Max:    5 * time.Minute,
		Factor: 2,
		Jitter: true,
	}

	for {
		processed, err := d.DispatchOne(ctx)
		if err != nil {
			d.logger.Error("mail dispatch cycle failed", "error", err)
		}

		var wait time.Duration
		switch {
		case err != nil:
			wait = b.Duration()
		case processed:
			// More may be waiting; go straight back.
			b.Reset()
			continue
		default:
			b.Reset()
			wait = d.PollInterval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// DispatchOne claims and sends at most one pending request. It reports
// whether a request was processed, successfully or not.
func (d *Dispatcher) DispatchOne(ctx context.Context) (bool, error) {
	req, err := d.store.ClaimMail(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := d.sender.Send(req); err != nil {
		final := req.Attempts >= MaxAttempts
		d.logger.Warn("mail delivery failed",
			"id", req.ID,
			"attempt", req.Attempts,
			"final", final,
			"error", err,
		)
		if markErr := d.store.MarkMailFailed(ctx, req.ID, err.Error(), final); markErr != nil {
			return true, markErr
		}
		return true, nil
	}

	if err := d.store.MarkMailSent(ctx, req.ID); err != nil {
		return true, err
	}
	d.logger.Info("mail sent", "id", req.ID, "to", req.To, "subject", req.Message.Subject)
	return true, nil
}
