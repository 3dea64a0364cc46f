// Package service implements the RSVP submission and decline workflows:
// validate collected state, commit a create-only document keyed by invite
// code, and fire a best-effort admin notification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/storage"
)

// Outcome is the terminal result of a submission attempt.
type Outcome string

const (
	// OutcomeConfirmed means this call created the RSVP document.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeAlreadySubmitted means a document already existed for the
	// code. The intent (at most one RSVP) is satisfied, so this is
	// success-equivalent, not an error.
	OutcomeAlreadySubmitted Outcome = "already_submitted"
)

// ValidationError is a recoverable input problem, surfaced inline so the
// guest can correct and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RSVPService runs the one-response-per-code workflow on top of a Store.
type RSVPService struct {
	store storage.Store
	// notifyTo are the organizer addresses for admin notifications.
	notifyTo []string
	replyTo  string
	now      func() time.Time
}

// NewRSVPService creates an RSVPService. notifyTo may be empty, which
// disables admin notifications.
func NewRSVPService(store storage.Store, notifyTo []string, replyTo string) *RSVPService {
	return &RSVPService{
		store:    store,
		notifyTo: notifyTo,
		replyTo:  replyTo,
		now:      time.Now,
	}
}

// Lookup fetches the guest record for an invite code. A missing record is
// not an error for the flow; callers degrade to the anonymous path.
func (s *RSVPService) Lookup(ctx context.Context, code string) (*models.Guest, error) {
	return s.store.GetGuest(ctx, code)
}

// Existing returns the stored response for a code, or storage.ErrNotFound.
// The flow uses it to short-circuit already-submitted sessions straight to
// the terminal screen.
func (s *RSVPService) Existing(ctx context.Context, code string) (*models.RSVP, error) {
	return s.store.GetRSVP(ctx, code)
}

// Submission is the collected flow state handed to Submit.
type Submission struct {
	Code       string
	Guest      *models.Guest // nil for the anonymous path
	Name       string
	Email      string
	Phone      string
	Dietary    string
	Message    string
	Song       string
	Guests     int
	GuestNames []string
	Coins      int
	Payment    models.PaymentMethod
}

// Result reports what Submit or Decline did.
type Result struct {
	Outcome Outcome
	RSVP    *models.RSVP
}

// Submit validates the collected state and commits the attending RSVP.
// Validation failures return *ValidationError and change nothing. A
// duplicate at the key is reported as OutcomeAlreadySubmitted with the
// stored document. Any other store error is a retryable failure; there is
// no automatic retry since submission is user-initiated and rare.
func (s *RSVPService) Submit(ctx context.Context, sub *Submission) (*Result, error) {
	if err := validate(sub); err != nil {
		return nil, err
	}

	hosted := sub.Guest != nil && sub.Guest.HostedStay
	payment := sub.Payment
	if hosted {
		// Hosted guests never pay, whatever the UI had selected.
		payment = models.PaymentNone
	}

	rsvp := &models.RSVP{
		Code:          sub.Code,
		Status:        models.RSVPAttending,
		Name:          strings.TrimSpace(sub.Name),
		Email:         strings.TrimSpace(sub.Email),
		Phone:         strings.TrimSpace(sub.Phone),
		Dietary:       sub.Dietary,
		Message:       strings.TrimSpace(sub.Message),
		Song:          strings.TrimSpace(sub.Song),
		Guests:        sub.Guests,
		GuestNames:    trimmedNames(sub.GuestNames[:sub.Guests]),
		Coins:         sub.Coins,
		PaymentMethod: payment,
		RefCode:       RefCode(sub.Code, sub.Name, sub.Phone),
		CreatedAt:     s.now().UTC(),
	}
	if sub.Guest != nil {
		rsvp.AmountDueZAR = sub.Guest.AmountDueZAR
	}
	if rsvp.Code == "" {
		rsvp.Code = uuid.New().String()
		rsvp.Anonymous = true
	}

	return s.commit(ctx, rsvp)
}

// Decline records a refusal with a minimal payload. An anonymous decline
// gets a generated key, deliberately relaxing the one-per-code invariant
// since there is no code to enforce it against.
func (s *RSVPService) Decline(ctx context.Context, code, name, email string) (*Result, error) {
	rsvp := &models.RSVP{
		Code:      code,
		Status:    models.RSVPDeclined,
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		RefCode:   RefCode(code, name, ""),
		CreatedAt: s.now().UTC(),
	}
	if rsvp.Code == "" {
		rsvp.Code = uuid.New().String()
		rsvp.Anonymous = true
	}

	return s.commit(ctx, rsvp)
}

// commit runs the create-only write and the decoupled notification.
func (s *RSVPService) commit(ctx context.Context, rsvp *models.RSVP) (*Result, error) {
	err := s.store.CreateRSVP(ctx, rsvp)
	if errors.Is(err, storage.ErrAlreadyExists) {
		stored, getErr := s.store.GetRSVP(ctx, rsvp.Code)
		if getErr != nil {
			// The conflict already proves the invariant holds; report the
			// outcome even if the read-back failed.
			slog.Warn("could not read back existing rsvp", "code", rsvp.Code, "error", getErr)
			stored = nil
		}
		return &Result{Outcome: OutcomeAlreadySubmitted, RSVP: stored}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save rsvp: %w", err)
	}

	s.notify(ctx, rsvp)

	return &Result{Outcome: OutcomeConfirmed, RSVP: rsvp}, nil
}

// notify enqueues the admin notification. Best-effort: the RSVP is already
// committed, so errors are logged and swallowed.
func (s *RSVPService) notify(ctx context.Context, rsvp *models.RSVP) {
	if len(s.notifyTo) == 0 {
		return
	}

	req := buildAdminMail(s.notifyTo, s.replyTo, rsvp)
	if err := s.store.EnqueueMail(ctx, req); err != nil {
		slog.Error("failed to enqueue admin notification", "code", rsvp.Code, "error", err)
		return
	}
	slog.Info("admin notification queued", "code", rsvp.Code, "status", rsvp.Status)
}

func validate(sub *Submission) error {
	if strings.TrimSpace(sub.Name) == "" {
		return &ValidationError{Field: "name", Reason: "primary contact name is required"}
	}

	maxSeats := models.MaxSeatsPerInvite
	if sub.Guest != nil {
		maxSeats = sub.Guest.MaxSeats()
	}
	if sub.Guests < 1 || sub.Guests > maxSeats {
		return &ValidationError{
			Field:  "guests",
			Reason: fmt.Sprintf("guest count must be between 1 and %d", maxSeats),
		}
	}
	if len(sub.GuestNames) < sub.Guests {
		return &ValidationError{Field: "guest_names", Reason: "a name is required for every seat"}
	}
	for i, name := range sub.GuestNames[:sub.Guests] {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{
				Field:  "guest_names",
				Reason: fmt.Sprintf("guest name %d is blank", i+1),
			}
		}
	}
	if sub.Coins < 0 {
		return &ValidationError{Field: "coins", Reason: "coin balance cannot be negative"}
	}

	hosted := sub.Guest != nil && sub.Guest.HostedStay
	if !hosted {
		if sub.Payment == "" || sub.Payment == models.PaymentNone {
			return &ValidationError{Field: "payment_method", Reason: "choose a payment method"}
		}
		if !sub.Payment.Valid() {
			return &ValidationError{Field: "payment_method", Reason: "unknown payment method"}
		}
	}

	return nil
}

func trimmedNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.TrimSpace(n)
	}
	return out
}
