package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/service"
	"github.com/ldelange/invitation/internal/session"
	"github.com/ldelange/invitation/internal/storage"
	"github.com/ldelange/invitation/internal/storage/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, storage.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "flow.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.NewManager(time.Hour)
	rsvp := service.NewRSVPService(store, []string{"couple@example.com"}, "")
	ts := httptest.NewServer(New(store, sessions, rsvp, "").Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func seedGuest(t *testing.T, store storage.Store, guest *models.Guest) {
	t.Helper()
	if err := store.UpsertGuest(context.Background(), guest); err != nil {
		t.Fatalf("failed to seed guest: %v", err)
	}
}

// call posts body (or GETs when body is nil) and decodes the JSON response
// into out.
func call(t *testing.T, ts *httptest.Server, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response from %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// winPetalGame drives the catching game to a win through the API: pop every
// petal, let the pop animations finish so the petals respawn, repeat.
func winPetalGame(t *testing.T, ts *httptest.Server, id string) {
	t.Helper()
	var view struct {
		State  string `json:"state"`
		Caught int    `json:"caught"`
		Coins  int    `json:"coins"`
	}
	for round := 0; round < 3; round++ {
		for petalID := 1; petalID <= 10; petalID++ {
			call(t, ts, http.MethodPost, "/api/sessions/"+id+"/petal/catch",
				map[string]int{"petal_id": petalID}, &view)
			if view.State == "won" {
				return
			}
		}
		call(t, ts, http.MethodPost, "/api/sessions/"+id+"/petal/tick",
			map[string]int{"ticks": 6}, &view)
	}
	t.Fatalf("petal game not won: state=%s caught=%d", view.State, view.Caught)
}

// winReactionGame ticks the marker into the target zone and stops.
func winReactionGame(t *testing.T, ts *httptest.Server, id string) {
	t.Helper()
	var view struct {
		State string  `json:"state"`
		Pos   float64 `json:"pos"`
	}
	// 15 ticks at 4 units lands the marker on 60, mid-target.
	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/reaction/tick",
		map[string]int{"ticks": 15}, &view)
	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/reaction/stop", map[string]any{}, &view)
	if view.State != "won" {
		t.Fatalf("reaction game not won: state=%s pos=%v", view.State, view.Pos)
	}
}

func advance(t *testing.T, ts *httptest.Server, id string, to session.Screen) sessionState {
	t.Helper()
	var state sessionState
	status := call(t, ts, http.MethodPost, "/api/sessions/"+id+"/advance",
		map[string]string{"screen": string(to)}, &state)
	if status != http.StatusOK {
		t.Fatalf("advance to %s returned %d", to, status)
	}
	return state
}

func TestFullFlow(t *testing.T) {
	ts, store := newTestServer(t)
	seedGuest(t, store, &models.Guest{
		Code:           "ABC1",
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		SeatsAllocated: 2,
	})

	var state sessionState
	status := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"code": "ABC1"}, &state)
	if status != http.StatusCreated {
		t.Fatalf("session create returned %d", status)
	}
	if state.Screen != session.ScreenDoor || state.Coins != 0 {
		t.Fatalf("new session should start at the door with no coins: %+v", state)
	}
	if state.GuestName != "Jane Doe" || state.MaxSeats != 2 {
		t.Fatalf("guest record not applied: %+v", state)
	}
	id := state.SessionID

	advance(t, ts, id, session.ScreenDetails)
	advance(t, ts, id, session.ScreenGame1)
	winPetalGame(t, ts, id)

	advance(t, ts, id, session.ScreenGame2)
	winReactionGame(t, ts, id)

	state = advance(t, ts, id, session.ScreenSeats)
	if state.Coins != 50 {
		t.Fatalf("expected 50 coins after winning both games, got %d", state.Coins)
	}
	if !state.Quote.Enough {
		t.Fatalf("two seats at 25 coins each should be affordable: %+v", state.Quote)
	}

	status = call(t, ts, http.MethodPost, "/api/sessions/"+id+"/seats", map[string]int{"count": 2}, &state)
	if status != http.StatusOK {
		t.Fatalf("seat purchase returned %d", status)
	}
	if state.Coins != 0 || state.Screen != session.ScreenGuestInfo {
		t.Fatalf("purchase should drain coins and advance: %+v", state)
	}

	status = call(t, ts, http.MethodPost, "/api/sessions/"+id+"/details", map[string]any{
		"name":        "Jane Doe",
		"email":       "jane@example.com",
		"phone":       "0821234567",
		"dietary":     "Vegetarian",
		"guest_names": []string{"Jane Doe", "John Doe"},
	}, &state)
	if status != http.StatusOK {
		t.Fatalf("details returned %d", status)
	}
	if state.Screen != session.ScreenSongAndPay {
		t.Fatalf("details should advance to the payment screen, got %s", state.Screen)
	}

	var payment struct {
		RefCode string              `json:"ref_code"`
		Bank    service.BankDetails `json:"bank"`
		Hosted  bool                `json:"hosted"`
	}
	call(t, ts, http.MethodGet, "/api/sessions/"+id+"/payment", nil, &payment)
	if payment.RefCode != "ABC1" {
		t.Errorf("expected invite code as payment reference, got %q", payment.RefCode)
	}
	if payment.Bank.AccountNo == "" {
		t.Error("bank details missing from payment info")
	}

	var result struct {
		Outcome string `json:"outcome"`
		Message string `json:"message"`
	}
	status = call(t, ts, http.MethodPost, "/api/sessions/"+id+"/submit", map[string]string{
		"song":           "Dancing Queen",
		"payment_method": "hotel_counter",
	}, &result)
	if status != http.StatusOK {
		t.Fatalf("submit returned %d", status)
	}
	if result.Outcome != string(service.OutcomeConfirmed) {
		t.Fatalf("expected confirmed outcome, got %+v", result)
	}

	// One RSVP document under the invite code.
	ctx := context.Background()
	rsvp, err := store.GetRSVP(ctx, "ABC1")
	if err != nil {
		t.Fatalf("stored RSVP missing: %v", err)
	}
	if rsvp.Status != models.RSVPAttending || rsvp.Guests != 2 {
		t.Errorf("stored RSVP mismatch: %+v", rsvp)
	}
	if len(rsvp.GuestNames) != 2 || rsvp.GuestNames[1] != "John Doe" {
		t.Errorf("guest names not stored: %v", rsvp.GuestNames)
	}
	if rsvp.PaymentMethod != models.PaymentHotelCounter {
		t.Errorf("payment method not stored: %v", rsvp.PaymentMethod)
	}

	// Exactly one notification queued.
	if _, err := store.ClaimMail(ctx); err != nil {
		t.Fatalf("expected one queued mail: %v", err)
	}
	if _, err := store.ClaimMail(ctx); err == nil {
		t.Error("expected a single queued mail, found more")
	}

	// The spent session is gone.
	if status := call(t, ts, http.MethodGet, "/api/sessions/"+id, nil, nil); status != http.StatusNotFound {
		t.Errorf("terminal session should be removed, got %d", status)
	}

	// Revisiting with the same code short-circuits to the terminal state.
	var revisit struct {
		AlreadyResponded bool   `json:"already_responded"`
		Status           string `json:"status"`
	}
	status = call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"code": "ABC1"}, &revisit)
	if status != http.StatusOK || !revisit.AlreadyResponded {
		t.Fatalf("expected already-responded short-circuit, got %d %+v", status, revisit)
	}
	if revisit.Status != string(models.RSVPAttending) {
		t.Errorf("short-circuit should report stored status, got %q", revisit.Status)
	}
}

func TestJackpotCoversDeficit(t *testing.T) {
	ts, store := newTestServer(t)
	seedGuest(t, store, &models.Guest{Code: "BIG6", Name: "Big Family", SeatsAllocated: 6})

	var state sessionState
	call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"code": "BIG6"}, &state)
	id := state.SessionID

	advance(t, ts, id, session.ScreenDetails)
	advance(t, ts, id, session.ScreenGame1)
	winPetalGame(t, ts, id)
	advance(t, ts, id, session.ScreenGame2)

	// Lock the reaction game: three stops outside the target zone.
	var view struct {
		State string `json:"state"`
	}
	for i := 0; i < 3; i++ {
		call(t, ts, http.MethodPost, "/api/sessions/"+id+"/reaction/stop", map[string]any{}, &view)
		call(t, ts, http.MethodPost, "/api/sessions/"+id+"/reaction/reset", map[string]any{}, &view)
	}
	if view.State != "locked" {
		t.Fatalf("expected locked reaction game, got %s", view.State)
	}

	state = advance(t, ts, id, session.ScreenSeats)
	if state.Coins != 25 {
		t.Fatalf("expected only the petal win, got %d coins", state.Coins)
	}

	// Six seats cost 150; the jackpot must cover the missing 125.
	var quote session.SeatQuote
	call(t, ts, http.MethodGet, fmt.Sprintf("/api/sessions/%s/quote?count=6", id), nil, &quote)
	if quote.Deficit != 125 {
		t.Fatalf("expected deficit 125, got %+v", quote)
	}

	var jackpot struct {
		Award int `json:"award"`
		Coins int `json:"coins"`
	}
	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/jackpot", map[string]any{}, &jackpot)
	if jackpot.Coins < quote.Cost {
		t.Fatalf("jackpot should make the selection affordable: %+v", jackpot)
	}

	status := call(t, ts, http.MethodPost, "/api/sessions/"+id+"/seats", map[string]int{"count": 6}, &state)
	if status != http.StatusOK {
		t.Fatalf("purchase after jackpot returned %d", status)
	}
}

func TestDeclineFlow(t *testing.T) {
	ts, store := newTestServer(t)
	seedGuest(t, store, &models.Guest{Code: "XYZ9", Name: "Alex Smith", SeatsAllocated: 2})

	var state sessionState
	call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"code": "XYZ9"}, &state)
	id := state.SessionID

	advance(t, ts, id, session.ScreenDetails)

	var result struct {
		Outcome string `json:"outcome"`
	}
	status := call(t, ts, http.MethodPost, "/api/sessions/"+id+"/decline", map[string]any{}, &result)
	if status != http.StatusOK || result.Outcome != string(service.OutcomeConfirmed) {
		t.Fatalf("decline failed: %d %+v", status, result)
	}

	rsvp, err := store.GetRSVP(context.Background(), "XYZ9")
	if err != nil {
		t.Fatalf("declined RSVP missing: %v", err)
	}
	if rsvp.Status != models.RSVPDeclined {
		t.Errorf("expected declined status, got %s", rsvp.Status)
	}

	// The code is now used up for submissions too.
	var probe struct {
		Responded bool `json:"responded"`
	}
	call(t, ts, http.MethodGet, "/api/rsvps/XYZ9", nil, &probe)
	if !probe.Responded {
		t.Error("probe should report the decline")
	}
}

func TestAnonymousFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	var state sessionState
	status := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"code": "NOPE"}, &state)
	if status != http.StatusCreated {
		t.Fatalf("unknown code should still start a session, got %d", status)
	}
	if state.GuestName != "" || state.MaxSeats != models.MaxSeatsPerInvite {
		t.Errorf("unknown code should degrade to anonymous: %+v", state)
	}

	status = call(t, ts, http.MethodPost, "/api/sessions", map[string]string{}, &state)
	if status != http.StatusCreated {
		t.Fatalf("codeless session create returned %d", status)
	}
}

func TestSubmitValidation(t *testing.T) {
	ts, store := newTestServer(t)
	seedGuest(t, store, &models.Guest{Code: "VAL1", Name: "Val Idation", SeatsAllocated: 2})

	var state sessionState
	call(t, ts, http.MethodPost, "/api/sessions", map[string]string{"code": "VAL1"}, &state)
	id := state.SessionID

	// Submitting off the payment screen is a client bug.
	status := call(t, ts, http.MethodPost, "/api/sessions/"+id+"/submit",
		map[string]string{"payment_method": "eft"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 off the payment screen, got %d", status)
	}

	advance(t, ts, id, session.ScreenDetails)
	advance(t, ts, id, session.ScreenGame1)
	winPetalGame(t, ts, id)
	advance(t, ts, id, session.ScreenGame2)
	winReactionGame(t, ts, id)
	advance(t, ts, id, session.ScreenSeats)
	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/seats", map[string]int{"count": 1}, &state)

	// Blank the required name.
	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/details", map[string]any{
		"name":        "",
		"guest_names": []string{"Someone"},
	}, &state)

	var verr struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	status = call(t, ts, http.MethodPost, "/api/sessions/"+id+"/submit",
		map[string]string{"payment_method": "eft"}, &verr)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing name, got %d", status)
	}
	if verr.Field != "name" {
		t.Errorf("expected name field flagged, got %+v", verr)
	}

	// The session survives a validation failure for another try.
	if status := call(t, ts, http.MethodGet, "/api/sessions/"+id, nil, nil); status != http.StatusOK {
		t.Errorf("session should survive validation failure, got %d", status)
	}
}

// An anonymous guest with no phone gets a randomized reference suffix; the
// code shown on the confirmation must be the one that was stored, not a
// fresh roll.
func TestAnonymousSubmitRefCodeMatchesStored(t *testing.T) {
	ts, store := newTestServer(t)

	var state sessionState
	status := call(t, ts, http.MethodPost, "/api/sessions", map[string]string{}, &state)
	if status != http.StatusCreated {
		t.Fatalf("session create returned %d", status)
	}
	id := state.SessionID

	advance(t, ts, id, session.ScreenDetails)
	advance(t, ts, id, session.ScreenGame1)
	winPetalGame(t, ts, id)
	advance(t, ts, id, session.ScreenGame2)
	winReactionGame(t, ts, id)
	advance(t, ts, id, session.ScreenSeats)
	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/seats", map[string]int{"count": 1}, &state)

	call(t, ts, http.MethodPost, "/api/sessions/"+id+"/details", map[string]any{
		"name":        "Ano Nymous",
		"guest_names": []string{"Ano Nymous"},
	}, &state)

	var result struct {
		Outcome string `json:"outcome"`
		RefCode string `json:"ref_code"`
	}
	status = call(t, ts, http.MethodPost, "/api/sessions/"+id+"/submit",
		map[string]string{"payment_method": "eft"}, &result)
	if status != http.StatusOK || result.Outcome != string(service.OutcomeConfirmed) {
		t.Fatalf("submit failed: %d %+v", status, result)
	}
	if result.RefCode == "" {
		t.Fatal("confirmation missing reference code")
	}

	// The queued notification quotes the stored reference in its subject.
	claimed, err := store.ClaimMail(context.Background())
	if err != nil {
		t.Fatalf("expected one queued mail: %v", err)
	}
	subject := claimed.Message.Subject
	open := strings.LastIndex(subject, "(")
	if open < 0 || !strings.HasSuffix(subject, ")") {
		t.Fatalf("unexpected subject format: %q", subject)
	}
	storedRef := subject[open+1 : len(subject)-1]
	if result.RefCode != storedRef {
		t.Errorf("confirmation shows %q but %q was stored", result.RefCode, storedRef)
	}
}
