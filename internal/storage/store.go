// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ldelange/invitation/internal/models"
)

// MailReclaimAge is how long a claimed mail request may sit in the sending
// state before ClaimMail hands it out again. Generous compared to an SMTP
// round trip, so only a dead dispatcher trips it.
const MailReclaimAge = 10 * time.Minute

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by create-only writes when a document
	// already exists at the key. Callers treat this as a distinct outcome,
	// never as a retryable error.
	ErrAlreadyExists = errors.New("already exists")
)

// Store defines the interface for invitation storage operations.
// This abstraction allows swapping storage backends (MongoDB for hosted
// deployments, SQLite for local ones) without changing the service layer.
type Store interface {
	// GetGuest retrieves a guest record by invite code.
	// Returns ErrNotFound if no record exists for the code.
	GetGuest(ctx context.Context, code string) (*models.Guest, error)

	// UpsertGuest creates or replaces a guest record. Used only by the
	// offline import; the RSVP flow never mutates guests.
	UpsertGuest(ctx context.Context, guest *models.Guest) error

	// GetRSVP retrieves a response by its key (normally the invite code).
	// Returns ErrNotFound if the code has not responded yet.
	GetRSVP(ctx context.Context, code string) (*models.RSVP, error)

	// CreateRSVP persists a response with create-only semantics: if a
	// document already exists at rsvp.Code the write fails with
	// ErrAlreadyExists and the stored document is left untouched.
	CreateRSVP(ctx context.Context, rsvp *models.RSVP) error

	// EnqueueMail inserts a mail request in the pending state.
	// The rsvp.ID field will be populated by the store if empty.
	EnqueueMail(ctx context.Context, req *models.MailRequest) error

	// ClaimMail atomically claims the oldest claimable mail request, moving
	// it to the sending state and incrementing its attempt counter.
	// Claimable means pending, or sending with a claim older than
	// MailReclaimAge (a dispatcher died mid-send). Returns ErrNotFound when
	// nothing is claimable.
	ClaimMail(ctx context.Context) (*models.MailRequest, error)

	// MarkMailSent records a successful dispatch.
	MarkMailSent(ctx context.Context, id string) error

	// MarkMailFailed records a dispatch error. When final is false the
	// request returns to pending for another attempt; otherwise it is
	// parked in the failed state.
	MarkMailFailed(ctx context.Context, id string, sendErr string, final bool) error

	// Close releases any resources held by the store.
	Close() error
}
