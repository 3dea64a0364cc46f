package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/ldelange/invitation/internal/game"
	"github.com/ldelange/invitation/internal/middleware"
	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/service"
	"github.com/ldelange/invitation/internal/session"
	"github.com/ldelange/invitation/internal/storage"
)

// Terminal-screen messages. The guest only ever sees one of these; raw
// error codes never reach the UI.
const (
	msgConfirmed = "All set — see you soon! Thank you for RSVPing; we've received your details and look forward to celebrating with you."
	msgHosted    = "All set — see you soon! Your night's stay is on us; nothing to pay."
	msgDeclined  = "Thanks for letting us know. We're sorry you can't make it, but we truly appreciate the RSVP."
	msgAlready   = "Your RSVP was already received — no need to do anything else."
	msgRetryable = "Could not save your RSVP. Please try again."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionState is the snapshot the client renders after every call.
type sessionState struct {
	SessionID  string          `json:"session_id"`
	Code       string          `json:"code,omitempty"`
	Screen     session.Screen  `json:"screen"`
	Coins      int             `json:"coins"`
	GuestCount int             `json:"guest_count"`
	MaxSeats   int             `json:"max_seats"`
	Hosted     bool            `json:"hosted"`
	GuestName  string          `json:"guest_name,omitempty"`
	Form       session.Form    `json:"form"`
	Quote      session.SeatQuote `json:"quote"`
}

func snapshot(s *session.Session) sessionState {
	st := sessionState{
		SessionID:  s.ID,
		Code:       s.Code,
		Screen:     s.Screen,
		Coins:      s.Coins,
		GuestCount: s.GuestCount,
		MaxSeats:   s.MaxSeats(),
		Hosted:     s.Hosted(),
		Form:       s.Form,
		Quote:      session.Quote(s.Coins, s.GuestCount, s.MaxSeats()),
	}
	if s.Guest != nil {
		st.GuestName = s.Guest.Name
	}
	return st
}

// handleCreateSession starts a flow session for an optional invite code.
// A prior response for the code short-circuits to the terminal state
// without creating a session; a missing guest record degrades to the
// anonymous path.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	if req.Code != "" {
		if existing, err := s.rsvp.Existing(ctx, req.Code); err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"already_responded": true,
				"status":            existing.Status,
				"message":           msgAlready,
			})
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("rsvp probe failed", "code", req.Code, "error", err)
			writeError(w, http.StatusServiceUnavailable, msgRetryable)
			return
		}
	}

	var guest *models.Guest
	if req.Code != "" {
		g, err := s.rsvp.Lookup(ctx, req.Code)
		switch {
		case err == nil:
			guest = g
		case errors.Is(err, storage.ErrNotFound):
			// Unknown code: continue as an anonymous guest.
		default:
			// Lookup trouble also degrades to anonymous rather than
			// blocking the flow.
			slog.Warn("guest lookup failed", "code", req.Code, "error", err)
		}
	}

	sess := s.sessions.Create(req.Code, guest)
	writeJSON(w, http.StatusCreated, snapshot(sess))
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snapshot(&sess))
}

// handleAdvance moves the flow to the next screen, creating the game state
// machines as their screens come up.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Screen session.Screen `json:"screen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var state sessionState
	err := s.sessions.Update(r.PathValue("id"), func(sess *session.Session) error {
		if err := sess.Advance(req.Screen); err != nil {
			return err
		}
		switch sess.Screen {
		case session.ScreenGame1:
			if sess.Petal == nil {
				sess.Petal = game.NewPetalGame(uint64(time.Now().UnixNano()))
			}
		case session.ScreenGame2:
			if sess.Reaction == nil {
				sess.Reaction = game.NewReactionGame()
			}
		}
		state = snapshot(sess)
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type petalView struct {
	State     game.State   `json:"state"`
	Caught    int          `json:"caught"`
	Target    int          `json:"target"`
	TicksLeft int          `json:"ticks_left"`
	Petals    []game.Petal `json:"petals"`
	Coins     int          `json:"coins"`
}

func (s *Server) withPetal(w http.ResponseWriter, r *http.Request, fn func(*session.Session, *game.PetalGame)) {
	var view petalView
	err := s.sessions.Update(r.PathValue("id"), func(sess *session.Session) error {
		if sess.Petal == nil {
			return errors.New("petal game not started")
		}
		before := sess.Petal.State()
		fn(sess, sess.Petal)
		// Award exactly once, on the transition into the won state.
		if before != game.StateWon && sess.Petal.State() == game.StateWon {
			sess.AwardCoins(game.CoinsPerGame)
		}
		view = petalView{
			State:     sess.Petal.State(),
			Caught:    sess.Petal.Caught(),
			Target:    game.PetalTarget,
			TicksLeft: sess.Petal.TicksLeft(),
			Petals:    sess.Petal.Petals(),
			Coins:     sess.Coins,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePetalTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticks int `json:"ticks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ticks < 1 {
		req.Ticks = 1
	}
	if req.Ticks > game.PetalGameTicks {
		req.Ticks = game.PetalGameTicks
	}

	s.withPetal(w, r, func(_ *session.Session, g *game.PetalGame) {
		for i := 0; i < req.Ticks; i++ {
			g.Tick()
		}
	})
}

func (s *Server) handlePetalCatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PetalID int `json:"petal_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withPetal(w, r, func(_ *session.Session, g *game.PetalGame) {
		g.Catch(req.PetalID)
	})
}

type reactionView struct {
	State    game.ReactionState `json:"state"`
	Pos      float64            `json:"pos"`
	Attempts int                `json:"attempts"`
	Max      int                `json:"max_attempts"`
	Coins    int                `json:"coins"`
}

func (s *Server) withReaction(w http.ResponseWriter, r *http.Request, fn func(*game.ReactionGame)) {
	var view reactionView
	err := s.sessions.Update(r.PathValue("id"), func(sess *session.Session) error {
		if sess.Reaction == nil {
			return errors.New("reaction game not started")
		}
		before := sess.Reaction.State()
		fn(sess.Reaction)
		if before != game.ReactionWon && sess.Reaction.State() == game.ReactionWon {
			sess.AwardCoins(game.CoinsPerGame)
		}
		view = reactionView{
			State:    sess.Reaction.State(),
			Pos:      sess.Reaction.Pos(),
			Attempts: sess.Reaction.Attempts(),
			Max:      game.ReactionMaxAttempts,
			Coins:    sess.Coins,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReactionTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticks int `json:"ticks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ticks < 1 {
		req.Ticks = 1
	}
	if req.Ticks > 1000 {
		req.Ticks = 1000
	}

	s.withReaction(w, r, func(g *game.ReactionGame) {
		for i := 0; i < req.Ticks; i++ {
			g.Tick()
		}
	})
}

func (s *Server) handleReactionStop(w http.ResponseWriter, r *http.Request) {
	s.withReaction(w, r, func(g *game.ReactionGame) { g.Stop() })
}

func (s *Server) handleReactionReset(w http.ResponseWriter, r *http.Request) {
	s.withReaction(w, r, func(g *game.ReactionGame) { g.Reset() })
}

// handleJackpot pays the bonus needed to afford the current seat
// selection. Like the original slot machine, the spin always lands on the
// jackpot.
func (s *Server) handleJackpot(w http.ResponseWriter, r *http.Request) {
	var award int
	var reels [3]string
	var coins int
	err := s.sessions.Update(r.PathValue("id"), func(sess *session.Session) error {
		q := session.Quote(sess.Coins, sess.GuestCount, sess.MaxSeats())
		award = game.JackpotAward(q.Deficit)
		sess.AwardCoins(award)
		reels = game.JackpotReels()
		coins = sess.Coins
		return nil
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"award": award,
		"reels": reels,
		"spin":  game.SpinReels(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		"coins": coins,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	count := sess.GuestCount
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "count must be an integer")
			return
		}
		count = n
	}
	writeJSON(w, http.StatusOK, session.Quote(sess.Coins, count, sess.MaxSeats()))
}

func (s *Server) handlePurchaseSeats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var state sessionState
	err := s.sessions.Update(r.PathValue("id"), func(sess *session.Session) error {
		if _, err := sess.PurchaseSeats(req.Count); err != nil {
			return err
		}
		state = snapshot(sess)
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleDetails stores the guest-detail form on the session and moves on
// to the payment screen. Validation happens at submit, not here, so a
// guest can wander back and forth without losing input.
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name"`
		Email      string   `json:"email"`
		Phone      string   `json:"phone"`
		Dietary    string   `json:"dietary"`
		Message    string   `json:"message"`
		GuestNames []string `json:"guest_names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var state sessionState
	err := s.sessions.Update(r.PathValue("id"), func(sess *session.Session) error {
		sess.Form.Name = req.Name
		sess.Form.Email = req.Email
		sess.Form.Phone = req.Phone
		if req.Dietary != "" {
			sess.Form.Dietary = req.Dietary
		}
		sess.Form.Message = req.Message
		if len(req.GuestNames) > 0 {
			names := make([]string, sess.GuestCount)
			copy(names, req.GuestNames)
			sess.Form.GuestNames = names
		}
		if sess.Screen == session.ScreenGuestInfo {
			if err := sess.Advance(session.ScreenSongAndPay); err != nil {
				return err
			}
		}
		state = snapshot(sess)
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handlePaymentInfo returns the reference code and EFT bank block for the
// payment screen.
func (s *Server) handlePaymentInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	resp := map[string]any{
		"ref_code": service.RefCode(sess.Code, sess.Form.Name, sess.Form.Phone),
		"bank":     service.EFTDetails(),
		"hosted":   sess.Hosted(),
	}
	if sess.Guest != nil && sess.Guest.AmountDueZAR > 0 {
		resp["amount_due_zar"] = sess.Guest.AmountDueZAR
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSubmit runs the commit. Validation problems come back as 422 with
// the offending field; a duplicate is reported as success with the
// already-received message; anything else is a retryable 503.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Song          string               `json:"song"`
		PaymentMethod models.PaymentMethod `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.Screen != session.ScreenSongAndPay {
		writeError(w, http.StatusBadRequest, "not on the payment screen")
		return
	}

	sub := &service.Submission{
		Code:       sess.Code,
		Guest:      sess.Guest,
		Name:       sess.Form.Name,
		Email:      sess.Form.Email,
		Phone:      sess.Form.Phone,
		Dietary:    sess.Form.Dietary,
		Message:    sess.Form.Message,
		Song:       req.Song,
		Guests:     sess.GuestCount,
		GuestNames: sess.Form.GuestNames,
		Coins:      sess.Coins,
		Payment:    req.PaymentMethod,
	}

	res, err := s.rsvp.Submit(r.Context(), sub)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": verr.Reason,
				"field": verr.Field,
			})
			return
		}
		slog.Error("rsvp commit failed", "code", sess.Code, "error", err)
		writeError(w, http.StatusServiceUnavailable, msgRetryable)
		return
	}

	msg := msgConfirmed
	switch {
	case res.Outcome == service.OutcomeAlreadySubmitted:
		msg = msgAlready
	case sess.Hosted():
		msg = msgHosted
	}
	middleware.RSVPOutcomes.WithLabelValues(string(res.Outcome)).Inc()

	// The stored reference code is the one the guest must quote; recompute
	// only when the already-submitted path could not read the document back.
	refCode := service.RefCode(sess.Code, sess.Form.Name, sess.Form.Phone)
	if res.RSVP != nil && res.RSVP.RefCode != "" {
		refCode = res.RSVP.RefCode
	}

	// Terminal: the session has served its purpose.
	s.sessions.Remove(id)

	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":  res.Outcome,
		"message":  msg,
		"ref_code": refCode,
	})
}

// handleDecline is the alternate terminal path, reachable from the details
// screen onward.
func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	res, err := s.rsvp.Decline(r.Context(), sess.Code, sess.Form.Name, sess.Form.Email)
	if err != nil {
		slog.Error("decline commit failed", "code", sess.Code, "error", err)
		writeError(w, http.StatusServiceUnavailable, msgRetryable)
		return
	}

	msg := msgDeclined
	if res.Outcome == service.OutcomeAlreadySubmitted {
		msg = msgAlready
	} else {
		middleware.RSVPOutcomes.WithLabelValues("declined").Inc()
	}

	s.sessions.Remove(id)

	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": res.Outcome,
		"message": msg,
	})
}

func (s *Server) handleGetGuest(w http.ResponseWriter, r *http.Request) {
	guest, err := s.rsvp.Lookup(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no profile for this code")
			return
		}
		slog.Error("guest lookup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "lookup unavailable")
		return
	}
	writeJSON(w, http.StatusOK, guest)
}

// handleProbeRSVP reports whether a code has already responded. Only
// status is exposed; the stored details stay private.
func (s *Server) handleProbeRSVP(w http.ResponseWriter, r *http.Request) {
	rsvp, err := s.rsvp.Existing(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"responded": false})
			return
		}
		slog.Error("rsvp probe failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "probe unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"responded": true,
		"status":    rsvp.Status,
	})
}
