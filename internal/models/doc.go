// Package models defines the core domain models for the invitation service.
//
// # Models
//
//   - Guest: an invited party, keyed by its invite code. Created by the
//     offline import and read-only to the RSVP flow.
//   - RSVP: a guest's single response, keyed by the same invite code.
//   - MailRequest: an outbound notification queued for the mail dispatcher.
//
// # Design Principles
//
//  1. **One response per code**: the invite code doubles as the RSVP
//     primary key so duplicate submissions collide at the store instead of
//     silently merging.
//  2. **Forward-only data flow**: models carry no screen state; everything
//     the flow collects lands here only at submission time.
//  3. **Anonymous path**: a guest without a resolvable code still gets an
//     RSVP, keyed by a generated ID, with the uniqueness guarantee relaxed.
package models
