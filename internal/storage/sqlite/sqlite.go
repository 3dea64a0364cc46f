// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface, intended for local and single-host deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver. _txlock=immediate makes every
	// transaction take the write lock up front, so ClaimMail's select and
	// update cannot interleave between two connections; the busy timeout
	// makes the loser wait instead of failing.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetGuest retrieves a guest record by invite code.
func (s *SQLiteStore) GetGuest(ctx context.Context, code string) (*models.Guest, error) {
	g := &models.Guest{}
	var hosted, comped int
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, email, seats_allocated, dietary_default, message_default,
		        hosted_stay, comped_nights, amount_due_zar
		 FROM guests WHERE code = ?`,
		code,
	).Scan(&g.Code, &g.Name, &g.Email, &g.SeatsAllocated, &g.DietaryDefault,
		&g.MessageDefault, &hosted, &comped, &g.AmountDueZAR)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	g.HostedStay = hosted != 0
	g.CompedNights = comped
	return g, nil
}

// UpsertGuest creates or replaces a guest record.
func (s *SQLiteStore) UpsertGuest(ctx context.Context, guest *models.Guest) error {
	hosted := 0
	if guest.HostedStay {
		hosted = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guests (code, name, email, seats_allocated, dietary_default,
		                     message_default, hosted_stay, comped_nights, amount_due_zar)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		     name = excluded.name,
		     email = excluded.email,
		     seats_allocated = excluded.seats_allocated,
		     dietary_default = excluded.dietary_default,
		     message_default = excluded.message_default,
		     hosted_stay = excluded.hosted_stay,
		     comped_nights = excluded.comped_nights,
		     amount_due_zar = excluded.amount_due_zar`,
		guest.Code, guest.Name, guest.Email, guest.SeatsAllocated, guest.DietaryDefault,
		guest.MessageDefault, hosted, guest.CompedNights, guest.AmountDueZAR,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert guest: %w", err)
	}
	return nil
}

// GetRSVP retrieves a response by its key.
func (s *SQLiteStore) GetRSVP(ctx context.Context, code string) (*models.RSVP, error) {
	r := &models.RSVP{}
	var anon int
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT code, status, name, email, phone, dietary, message, song, guests,
		        coins, payment_method, ref_code, amount_due_zar, anonymous, created_at
		 FROM rsvps WHERE code = ?`,
		code,
	).Scan(&r.Code, &r.Status, &r.Name, &r.Email, &r.Phone, &r.Dietary, &r.Message,
		&r.Song, &r.Guests, &r.Coins, &r.PaymentMethod, &r.RefCode, &r.AmountDueZAR,
		&anon, &createdAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	r.Anonymous = anon != 0
	r.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM rsvp_guest_names WHERE rsvp_code = ? ORDER BY position",
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get guest names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan guest name: %w", err)
		}
		r.GuestNames = append(r.GuestNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guest names: %w", err)
	}

	return r, nil
}

// CreateRSVP persists a response with create-only semantics. The existence
// check and insert run inside one transaction, so a concurrent create for
// the same code observes ErrAlreadyExists instead of clobbering the first.
func (s *SQLiteStore) CreateRSVP(ctx context.Context, rsvp *models.RSVP) error {
	if rsvp.CreatedAt.IsZero() {
		rsvp.CreatedAt = time.Now().UTC()
	}
	anon := 0
	if rsvp.Anonymous {
		anon = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM rsvps WHERE code = ?", rsvp.Code,
	).Scan(&exists)
	if err == nil {
		return storage.ErrAlreadyExists
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to probe rsvp: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rsvps (code, status, name, email, phone, dietary, message, song,
		                    guests, coins, payment_method, ref_code, amount_due_zar,
		                    anonymous, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rsvp.Code, rsvp.Status, rsvp.Name, rsvp.Email, rsvp.Phone, rsvp.Dietary,
		rsvp.Message, rsvp.Song, rsvp.Guests, rsvp.Coins, rsvp.PaymentMethod,
		rsvp.RefCode, rsvp.AmountDueZAR, anon, rsvp.CreatedAt.Unix(),
	)
	if err != nil {
		// A racing transaction can slip past the probe; the primary key
		// still rejects it.
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert rsvp: %w", err)
	}

	for i, name := range rsvp.GuestNames {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO rsvp_guest_names (rsvp_code, position, name) VALUES (?, ?, ?)",
			rsvp.Code, i, name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert guest name: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// EnqueueMail inserts a mail request in the pending state.
func (s *SQLiteStore) EnqueueMail(ctx context.Context, req *models.MailRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = models.MailPending

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mail_requests (id, recipients, reply_to, subject, body_text,
		                            body_html, status, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		req.ID, strings.Join(req.To, ","), req.ReplyTo, req.Message.Subject,
		req.Message.Text, req.Message.HTML, req.Status, req.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue mail: %w", err)
	}
	return nil
}

// ClaimMail claims the oldest claimable mail request: pending, or sending
// with a claim older than storage.MailReclaimAge (the dispatcher that took
// it died mid-send). The select and update share an immediate transaction
// so two dispatchers cannot claim the same request.
func (s *SQLiteStore) ClaimMail(ctx context.Context) (*models.MailRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	staleBefore := now.Add(-storage.MailReclaimAge).Unix()

	req := &models.MailRequest{}
	var recipients string
	var createdAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, recipients, reply_to, subject, body_text, body_html, attempts, created_at
		 FROM mail_requests
		 WHERE status = ? OR (status = ? AND claimed_at <= ?)
		 ORDER BY created_at, id LIMIT 1`,
		models.MailPending, models.MailSending, staleBefore,
	).Scan(&req.ID, &recipients, &req.ReplyTo, &req.Message.Subject,
		&req.Message.Text, &req.Message.HTML, &req.Attempts, &createdAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable mail: %w", err)
	}

	req.To = strings.Split(recipients, ",")
	req.CreatedAt = time.Unix(createdAt, 0).UTC()
	req.Status = models.MailSending
	req.Attempts++
	req.ClaimedAt = now

	_, err = tx.ExecContext(ctx,
		"UPDATE mail_requests SET status = ?, attempts = ?, claimed_at = ? WHERE id = ?",
		req.Status, req.Attempts, now.Unix(), req.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim mail: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return req, nil
}

// MarkMailSent records a successful dispatch.
func (s *SQLiteStore) MarkMailSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mail_requests SET status = ?, sent_at = ? WHERE id = ?",
		models.MailSent, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark mail sent: %w", err)
	}
	return nil
}

// MarkMailFailed records a dispatch error, returning the request to pending
// unless final is set.
func (s *SQLiteStore) MarkMailFailed(ctx context.Context, id string, sendErr string, final bool) error {
	status := models.MailPending
	if final {
		status = models.MailFailed
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE mail_requests SET status = ?, last_error = ? WHERE id = ?",
		status, sendErr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark mail failed: %w", err)
	}
	return nil
}
