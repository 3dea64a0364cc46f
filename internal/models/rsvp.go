package models

import "time"

// RSVPStatus is the terminal outcome recorded for an invite.
type RSVPStatus string

const (
	RSVPAttending RSVPStatus = "attending"
	RSVPDeclined  RSVPStatus = "declined"
)

// PaymentMethod is how a guest chose to settle the accommodation fee.
// Payment itself is manual; the selection is advisory only.
type PaymentMethod string

const (
	// PaymentNone is recorded for hosted guests and declines.
	PaymentNone PaymentMethod = "none"
	// PaymentHotelCounter means the guest settles at the reception desk.
	PaymentHotelCounter PaymentMethod = "hotel_counter"
	// PaymentEFT means the guest pays by bank transfer, quoting the
	// reference code.
	PaymentEFT PaymentMethod = "eft"
)

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentNone, PaymentHotelCounter, PaymentEFT:
		return true
	}
	return false
}

// DietaryOptions are the preferences offered on the guest-detail screen.
// Free-text details go in the message field.
var DietaryOptions = []string{
	"None",
	"Vegetarian",
	"Vegan",
	"Halaal",
	"Kosher",
	"Allergy (specify in message)",
}

// RSVP is a guest's single response. Keyed by the invite code, or by a
// generated ID for an anonymous decline. The store rejects a second create
// at the same key; this is the one correctness invariant in the system.
type RSVP struct {
	// Code is the document key: the invite code, or a generated ID when
	// no code was resolvable.
	Code string `json:"code" bson:"_id"`

	Status RSVPStatus `json:"status" bson:"status"`

	// Name is the primary contact; required for submissions.
	Name    string `json:"name" bson:"name"`
	Email   string `json:"email,omitempty" bson:"email,omitempty"`
	Phone   string `json:"phone,omitempty" bson:"phone,omitempty"`
	Dietary string `json:"dietary,omitempty" bson:"dietary,omitempty"`
	Message string `json:"message,omitempty" bson:"message,omitempty"`
	Song    string `json:"song,omitempty" bson:"song,omitempty"`

	// Guests is the reserved seat count, within [1, MaxSeatsPerInvite].
	Guests int `json:"guests,omitempty" bson:"guests,omitempty"`

	// GuestNames lists one name per reserved seat, in order.
	GuestNames []string `json:"guest_names,omitempty" bson:"guestNames,omitempty"`

	// Coins is the play-currency spent on the reservation. Informational.
	Coins int `json:"coins,omitempty" bson:"coins,omitempty"`

	PaymentMethod PaymentMethod `json:"payment_method,omitempty" bson:"paymentMethod,omitempty"`

	// RefCode is shown to the guest for manual payment reconciliation.
	RefCode string `json:"ref_code,omitempty" bson:"refCode,omitempty"`

	// AmountDueZAR carries the informational fee over from the guest record.
	AmountDueZAR float64 `json:"amount_due_zar,omitempty" bson:"amountDueZar,omitempty"`

	// Anonymous marks a record created without a resolvable invite code.
	Anonymous bool `json:"anonymous,omitempty" bson:"anonymous,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
}
