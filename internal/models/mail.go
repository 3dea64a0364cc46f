package models

import "time"

// MailStatus tracks a mail request through the dispatch queue.
type MailStatus string

const (
	// MailPending means the request is waiting to be picked up.
	MailPending MailStatus = "pending"
	// MailSending means a dispatcher has claimed the request.
	MailSending MailStatus = "sending"
	// MailSent means the relay accepted the message.
	MailSent MailStatus = "sent"
	// MailFailed means dispatch gave up after repeated errors.
	MailFailed MailStatus = "failed"
)

// MailMessage is the subject and body pair of an outbound email.
type MailMessage struct {
	Subject string `json:"subject" bson:"subject"`
	Text    string `json:"text" bson:"text"`
	HTML    string `json:"html,omitempty" bson:"html,omitempty"`
}

// MailRequest is a queued notification. Producers insert it and move on;
// the dispatcher claims, sends, and marks it. A failure here never affects
// the RSVP that triggered it.
type MailRequest struct {
	ID      string      `json:"id" bson:"_id"`
	To      []string    `json:"to" bson:"to"`
	ReplyTo string      `json:"reply_to,omitempty" bson:"replyTo,omitempty"`
	Message MailMessage `json:"message" bson:"message"`

	Status   MailStatus `json:"status" bson:"status"`
	Attempts int        `json:"attempts" bson:"attempts"`
	// ClaimedAt is stamped when a dispatcher takes the request. A sending
	// request whose claim has gone stale is claimable again, so a dispatcher
	// crash cannot strand it.
	ClaimedAt time.Time `json:"claimed_at,omitempty" bson:"claimedAt,omitempty"`
	// LastError holds the most recent dispatch error, for inspection.
	LastError string    `json:"last_error,omitempty" bson:"lastError,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	SentAt    time.Time `json:"sent_at,omitempty" bson:"sentAt,omitempty"`
}
