package models

// MaxSeatsPerInvite caps the number of seats any single invite can reserve,
// regardless of the allocation on the guest record.
const MaxSeatsPerInvite = 6

// Guest represents an invited party, keyed by its invite code.
// Records are created by the offline import and never mutated by the flow.
type Guest struct {
	// Code is the opaque invite code handed out with the invitation.
	// It is the document key and doubles as the RSVP key.
	Code string `json:"code" bson:"_id"`

	// Name is the primary contact name used for prefill.
	Name string `json:"name" bson:"name"`

	// Email is the contact email, if known.
	Email string `json:"email,omitempty" bson:"email,omitempty"`

	// SeatsAllocated is the upper bound on reservable seats for this invite.
	SeatsAllocated int `json:"seats_allocated" bson:"seatsAllocated"`

	// DietaryDefault and MessageDefault are optional prefill hints.
	DietaryDefault string `json:"dietary_default,omitempty" bson:"dietaryDefault,omitempty"`
	MessageDefault string `json:"message_default,omitempty" bson:"messageDefault,omitempty"`

	// HostedStay marks a guest whose accommodation is covered; hosted
	// guests skip payment-method selection entirely.
	HostedStay bool `json:"hosted_stay,omitempty" bson:"hostedStay,omitempty"`

	// CompedNights is the number of nights covered for a hosted guest.
	CompedNights int `json:"comped_nights,omitempty" bson:"compedNights,omitempty"`

	// AmountDueZAR is an informational accommodation fee in rand.
	AmountDueZAR float64 `json:"amount_due_zar,omitempty" bson:"amountDueZar,omitempty"`
}

// MaxSeats returns the reservable seat bound for this guest,
// clamped to [1, MaxSeatsPerInvite].
func (g *Guest) MaxSeats() int {
	return ClampSeats(g.SeatsAllocated)
}

// ClampSeats clamps a seat allocation to the valid reservable range.
// Anonymous guests (no record) use the full MaxSeatsPerInvite bound.
func ClampSeats(allocated int) int {
	if allocated < 1 {
		return 1
	}
	if allocated > MaxSeatsPerInvite {
		return MaxSeatsPerInvite
	}
	return allocated
}
