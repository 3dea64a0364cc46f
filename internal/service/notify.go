package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/ldelange/invitation/internal/models"
)

// buildAdminMail renders the organizer notification for a committed RSVP.
// Both a plain-text and an HTML body are produced; the plain text carries
// the same facts for clients that strip markup.
func buildAdminMail(to []string, replyTo string, rsvp *models.RSVP) *models.MailRequest {
	statusLabel := "Attending"
	if rsvp.Status == models.RSVPDeclined {
		statusLabel = "Declined"
	}

	ref := rsvp.RefCode
	if ref == "" {
		ref = "?"
	}
	subject := fmt.Sprintf("RSVP • %s • %s (%s)", statusLabel, rsvp.Name, ref)

	inviteCode := rsvp.Code
	if rsvp.Anonymous {
		inviteCode = "(none)"
	}

	var text strings.Builder
	text.WriteString("New RSVP received\n")
	fmt.Fprintf(&text, "Status: %s\n", statusLabel)
	fmt.Fprintf(&text, "Main contact: %s\n", rsvp.Name)
	if rsvp.Phone != "" {
		fmt.Fprintf(&text, "Phone: %s\n", rsvp.Phone)
	}
	if rsvp.Email != "" {
		fmt.Fprintf(&text, "Email: %s\n", rsvp.Email)
	}
	if rsvp.Dietary != "" {
		fmt.Fprintf(&text, "Dietary: %s\n", rsvp.Dietary)
	}
	if rsvp.Message != "" {
		fmt.Fprintf(&text, "Notes: %s\n", rsvp.Message)
	}
	if rsvp.Song != "" {
		fmt.Fprintf(&text, "Song: %s\n", rsvp.Song)
	}
	fmt.Fprintf(&text, "Seats booked: %d\n", rsvp.Guests)
	for i, n := range rsvp.GuestNames {
		if n == "" {
			n = "(blank)"
		}
		fmt.Fprintf(&text, "  %d. %s\n", i+1, n)
	}
	if rsvp.PaymentMethod != "" {
		fmt.Fprintf(&text, "Payment: %s\n", strings.ReplaceAll(string(rsvp.PaymentMethod), "_", " "))
	}
	fmt.Fprintf(&text, "Ref code: %s\n", rsvp.RefCode)
	fmt.Fprintf(&text, "Invite code: %s\n", inviteCode)

	var rows strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&rows, "<tr><td><b>%s</b></td><td>%s</td></tr>",
			html.EscapeString(label), html.EscapeString(value))
	}
	row("Status", statusLabel)
	row("Main contact", rsvp.Name)
	row("Phone", rsvp.Phone)
	row("Email", rsvp.Email)
	row("Dietary", rsvp.Dietary)
	row("Notes", rsvp.Message)
	row("Song request", rsvp.Song)
	row("Seats booked", fmt.Sprintf("%d", rsvp.Guests))

	var names strings.Builder
	for i, n := range rsvp.GuestNames {
		if n == "" {
			n = "(blank)"
		}
		fmt.Fprintf(&names, "<li>%d. %s</li>", i+1, html.EscapeString(n))
	}
	if names.Len() > 0 {
		fmt.Fprintf(&rows, "<tr><td><b>Guest names</b></td><td><ul>%s</ul></td></tr>", names.String())
	}
	if rsvp.PaymentMethod != "" {
		row("Payment", strings.ReplaceAll(string(rsvp.PaymentMethod), "_", " "))
	}
	row("Ref code", rsvp.RefCode)
	row("Invite code", inviteCode)

	htmlBody := fmt.Sprintf(
		`<div style="font-family:Segoe UI,Roboto,Arial,sans-serif;line-height:1.5;color:#111">`+
			`<h2>New RSVP received</h2>`+
			`<table cellpadding="6" cellspacing="0" style="border-collapse:collapse;">%s</table>`+
			`</div>`,
		rows.String(),
	)

	return &models.MailRequest{
		To:      to,
		ReplyTo: replyTo,
		Message: models.MailMessage{
			Subject: subject,
			Text:    text.String(),
			HTML:    htmlBody,
		},
	}
}
