// Package session holds the per-visit flow state the SPA used to keep in
// browser memory. State is deliberately in-memory only and scoped to one
// session ID: nothing survives a reload, so stale answers from a previous
// guest on a shared device can never leak into a new submission.
package session

import (
	"fmt"

	"github.com/ldelange/invitation/internal/game"
	"github.com/ldelange/invitation/internal/models"
)

// SeatPrice is the play-currency cost of one seat.
const SeatPrice = 25

// Screen is one step of the strictly linear invitation flow.
type Screen string

const (
	ScreenDoor       Screen = "door"
	ScreenDetails    Screen = "details"
	ScreenGame1      Screen = "game1"
	ScreenGame2      Screen = "game2"
	ScreenSeats      Screen = "seats"
	ScreenGuestInfo  Screen = "guestInfo"
	ScreenSongAndPay Screen = "songAndPay"
	ScreenDone       Screen = "done"
)

// screenOrder fixes the forward progression. The only backward edge is
// guestInfo -> seats.
var screenOrder = map[Screen]int{
	ScreenDoor:       0,
	ScreenDetails:    1,
	ScreenGame1:      2,
	ScreenGame2:      3,
	ScreenSeats:      4,
	ScreenGuestInfo:  5,
	ScreenSongAndPay: 6,
	ScreenDone:       7,
}

// Form is the guest-detail state collected across screens.
type Form struct {
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Phone         string               `json:"phone"`
	Dietary       string               `json:"dietary"`
	Message       string               `json:"message"`
	Song          string               `json:"song"`
	GuestNames    []string             `json:"guest_names"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

// Session is one guest's pass through the flow.
type Session struct {
	ID   string
	Code string
	// Guest is nil for an anonymous session (unknown or missing code).
	Guest  *models.Guest
	Screen Screen
	Coins  int
	// GuestCount is the selected seat count, clamped to the invite bound.
	GuestCount int
	// SeatsPaid is set once the purchase went through.
	SeatsPaid bool
	Form      Form
	Declined  bool

	Petal    *game.PetalGame
	Reaction *game.ReactionGame
}

// MaxSeats returns the seat bound for this session: the guest allocation
// when a record was found, the global cap otherwise.
func (s *Session) MaxSeats() int {
	if s.Guest != nil {
		return s.Guest.MaxSeats()
	}
	return models.MaxSeatsPerInvite
}

// Hosted reports whether this session belongs to a hosted guest.
func (s *Session) Hosted() bool {
	return s.Guest != nil && s.Guest.HostedStay
}

// Advance moves the flow to the given screen. Only single forward steps
// and the seats <-> guestInfo pair are legal; anything else is a client
// bug surfaced as an error.
func (s *Session) Advance(to Screen) error {
	cur, ok := screenOrder[s.Screen]
	next, ok2 := screenOrder[to]
	if !ok || !ok2 {
		return fmt.Errorf("unknown screen %q", to)
	}
	if next == cur+1 {
		s.Screen = to
		return nil
	}
	if s.Screen == ScreenGuestInfo && to == ScreenSeats {
		s.Screen = to
		return nil
	}
	return fmt.Errorf("cannot advance from %q to %q", s.Screen, to)
}

// SeatQuote is the cost breakdown for a prospective seat purchase.
type SeatQuote struct {
	Count   int  `json:"count"`
	Cost    int  `json:"cost"`
	Balance int  `json:"balance"`
	Deficit int  `json:"deficit"`
	Enough  bool `json:"enough"`
}

// Quote prices a seat selection against the available coins. Pure: no
// session state changes.
func Quote(coins, count, maxSeats int) SeatQuote {
	if count < 1 {
		count = 1
	}
	if count > maxSeats {
		count = maxSeats
	}
	cost := count * SeatPrice
	q := SeatQuote{
		Count:   count,
		Cost:    cost,
		Balance: coins - cost,
		Enough:  coins >= cost,
	}
	if !q.Enough {
		q.Deficit = cost - coins
	}
	return q
}

// PurchaseSeats spends coins on the selected seat count and advances to
// the guest-detail screen. Fails without side effects when the balance is
// short or the count is out of range.
func (s *Session) PurchaseSeats(count int) (SeatQuote, error) {
	if s.Screen != ScreenSeats {
		return SeatQuote{}, fmt.Errorf("not on the seats screen")
	}
	if count < 1 || count > s.MaxSeats() {
		return SeatQuote{}, fmt.Errorf("seat count %d out of range [1, %d]", count, s.MaxSeats())
	}
	q := Quote(s.Coins, count, s.MaxSeats())
	if !q.Enough {
		return q, fmt.Errorf("need %d more coins", q.Deficit)
	}

	s.Coins = q.Balance
	s.GuestCount = q.Count
	s.SeatsPaid = true
	if len(s.Form.GuestNames) != q.Count {
		names := make([]string, q.Count)
		copy(names, s.Form.GuestNames)
		s.Form.GuestNames = names
	}
	s.Screen = ScreenGuestInfo
	return q, nil
}

// view returns a value copy safe to read outside the manager lock. The
// guest record is shared since it is never mutated after Create; the game
// pointers are cleared because game state is only touched under Update.
func (s *Session) view() Session {
	out := *s
	out.Form.GuestNames = append([]string(nil), s.Form.GuestNames...)
	out.Petal = nil
	out.Reaction = nil
	return out
}

// AwardCoins credits play-currency earned from a game or the jackpot.
func (s *Session) AwardCoins(n int) {
	if n > 0 {
		s.Coins += n
	}
}
