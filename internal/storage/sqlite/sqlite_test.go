package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/storage"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGuests(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	t.Run("missing guest returns ErrNotFound", func(t *testing.T) {
		if _, err := store.GetGuest(ctx, "NOPE"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("upsert and read back", func(t *testing.T) {
		guest := &models.Guest{
			Code:           "ABC1",
			Name:           "Jane Doe",
			Email:          "jane@example.com",
			SeatsAllocated: 2,
			DietaryDefault: "Vegetarian",
			HostedStay:     true,
			CompedNights:   2,
			AmountDueZAR:   1850.50,
		}
		if err := store.UpsertGuest(ctx, guest); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := store.GetGuest(ctx, "ABC1")
		if err != nil {
			t.Fatalf("failed to get guest: %v", err)
		}
		if got.Name != guest.Name || got.SeatsAllocated != 2 || !got.HostedStay {
			t.Errorf("guest mismatch: %+v", got)
		}
		if got.CompedNights != 2 || got.AmountDueZAR != 1850.50 {
			t.Errorf("hosted fields mismatch: %+v", got)
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		if err := store.UpsertGuest(ctx, &models.Guest{Code: "ABC1", Name: "Jane Smith", SeatsAllocated: 4}); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		got, err := store.GetGuest(ctx, "ABC1")
		if err != nil {
			t.Fatalf("failed to get guest: %v", err)
		}
		if got.Name != "Jane Smith" || got.SeatsAllocated != 4 || got.HostedStay {
			t.Errorf("replacement not applied: %+v", got)
		}
	})
}

func TestCreateRSVP(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rsvp := &models.RSVP{
		Code:          "ABC1",
		Status:        models.RSVPAttending,
		Name:          "Jane Doe",
		Guests:        2,
		GuestNames:    []string{"Jane Doe", "John Doe"},
		Coins:         0,
		PaymentMethod: models.PaymentHotelCounter,
		RefCode:       "ABC1",
	}
	if err := store.CreateRSVP(ctx, rsvp); err != nil {
		t.Fatalf("failed to create rsvp: %v", err)
	}

	t.Run("read back preserves guest name order", func(t *testing.T) {
		got, err := store.GetRSVP(ctx, "ABC1")
		if err != nil {
			t.Fatalf("failed to get rsvp: %v", err)
		}
		if got.Status != models.RSVPAttending || got.Guests != 2 {
			t.Errorf("rsvp mismatch: %+v", got)
		}
		if len(got.GuestNames) != 2 || got.GuestNames[0] != "Jane Doe" || got.GuestNames[1] != "John Doe" {
			t.Errorf("guest names mismatch: %v", got.GuestNames)
		}
		if got.CreatedAt.IsZero() {
			t.Error("created_at not set")
		}
	})

	t.Run("second create fails with ErrAlreadyExists", func(t *testing.T) {
		dupe := &models.RSVP{Code: "ABC1", Status: models.RSVPDeclined, Name: "Impostor"}
		if err := store.CreateRSVP(ctx, dupe); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}

		// First write stays untouched.
		got, err := store.GetRSVP(ctx, "ABC1")
		if err != nil {
			t.Fatalf("failed to get rsvp: %v", err)
		}
		if got.Status != models.RSVPAttending || got.Name != "Jane Doe" {
			t.Errorf("stored rsvp was clobbered: %+v", got)
		}
	})
}

func TestMailQueue(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	t.Run("empty queue returns ErrNotFound", func(t *testing.T) {
		if _, err := store.ClaimMail(ctx); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	req := &models.MailRequest{
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "guest@example.com",
		Message: models.MailMessage{Subject: "hello", Text: "text", HTML: "<p>html</p>"},
	}
	if err := store.EnqueueMail(ctx, req); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	if req.ID == "" {
		t.Fatal("enqueue should assign an ID")
	}

	t.Run("claim moves to sending and counts the attempt", func(t *testing.T) {
		claimed, err := store.ClaimMail(ctx)
		if err != nil {
			t.Fatalf("failed to claim: %v", err)
		}
		if claimed.ID != req.ID || claimed.Status != models.MailSending || claimed.Attempts != 1 {
			t.Errorf("claim mismatch: %+v", claimed)
		}
		if len(claimed.To) != 2 || claimed.To[1] != "b@example.com" {
			t.Errorf("recipients mismatch: %v", claimed.To)
		}

		// Claimed requests are invisible to a second claim.
		if _, err := store.ClaimMail(ctx); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("claimed request should not be claimable again, got %v", err)
		}
	})

	t.Run("non-final failure returns the request to pending", func(t *testing.T) {
		if err := store.MarkMailFailed(ctx, req.ID, "relay refused", false); err != nil {
			t.Fatalf("failed to mark failed: %v", err)
		}
		claimed, err := store.ClaimMail(ctx)
		if err != nil {
			t.Fatalf("retry claim failed: %v", err)
		}
		if claimed.Attempts != 2 {
			t.Errorf("expected attempt counter 2, got %d", claimed.Attempts)
		}
	})

	t.Run("sent requests leave the queue for good", func(t *testing.T) {
		if err := store.MarkMailSent(ctx, req.ID); err != nil {
			t.Fatalf("failed to mark sent: %v", err)
		}
		if _, err := store.ClaimMail(ctx); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("sent request should not be claimable, got %v", err)
		}
	})

	t.Run("stale claim is handed out again", func(t *testing.T) {
		stale := &models.MailRequest{To: []string{"s@example.com"}, Message: models.MailMessage{Subject: "stale", Text: "t"}}
		if err := store.EnqueueMail(ctx, stale); err != nil {
			t.Fatalf("failed to enqueue: %v", err)
		}
		if _, err := store.ClaimMail(ctx); err != nil {
			t.Fatalf("failed to claim: %v", err)
		}

		// Age the claim past the reclaim window, as if the dispatcher that
		// took it died before marking the result.
		_, err := store.db.Exec("UPDATE mail_requests SET claimed_at = ? WHERE id = ?",
			time.Now().Add(-2*storage.MailReclaimAge).Unix(), stale.ID)
		if err != nil {
			t.Fatalf("failed to age claim: %v", err)
		}

		claimed, err := store.ClaimMail(ctx)
		if err != nil {
			t.Fatalf("stale request not reclaimable: %v", err)
		}
		if claimed.ID != stale.ID || claimed.Attempts != 2 {
			t.Errorf("reclaim mismatch: %+v", claimed)
		}
		if err := store.MarkMailSent(ctx, stale.ID); err != nil {
			t.Fatalf("failed to mark sent: %v", err)
		}
	})

	t.Run("final failure parks the request", func(t *testing.T) {
		other := &models.MailRequest{To: []string{"x@example.com"}, Message: models.MailMessage{Subject: "s", Text: "t"}}
		if err := store.EnqueueMail(ctx, other); err != nil {
			t.Fatalf("failed to enqueue: %v", err)
		}
		if _, err := store.ClaimMail(ctx); err != nil {
			t.Fatalf("failed to claim: %v", err)
		}
		if err := store.MarkMailFailed(ctx, other.ID, "bad address", true); err != nil {
			t.Fatalf("failed to mark failed: %v", err)
		}
		if _, err := store.ClaimMail(ctx); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("parked request should not be claimable, got %v", err)
		}
	})
}

func TestClaimMailConcurrent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	const n = 4
	for i := 0; i < n; i++ {
		req := &models.MailRequest{
			To:      []string{fmt.Sprintf("r%d@example.com", i)},
			Message: models.MailMessage{Subject: fmt.Sprintf("mail %d", i), Text: "t"},
		}
		if err := store.EnqueueMail(ctx, req); err != nil {
			t.Fatalf("failed to enqueue: %v", err)
		}
	}

	// Every concurrent claim must take a distinct request.
	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := store.ClaimMail(ctx)
			if err != nil {
				t.Errorf("concurrent claim failed: %v", err)
				return
			}
			mu.Lock()
			claimed[req.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(claimed) != n {
		t.Fatalf("expected %d distinct claims, got %d", n, len(claimed))
	}
	for id, count := range claimed {
		if count != 1 {
			t.Errorf("request %s claimed %d times", id, count)
		}
	}
}
