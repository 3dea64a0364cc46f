package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
const schema = `
CREATE TABLE IF NOT EXISTS guests (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    seats_allocated INTEGER NOT NULL,
    dietary_default TEXT NOT NULL DEFAULT '',
    message_default TEXT NOT NULL DEFAULT '',
    hosted_stay INTEGER NOT NULL DEFAULT 0,
    comped_nights INTEGER NOT NULL DEFAULT 0,
    amount_due_zar REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rsvps (
    code TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    dietary TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    song TEXT NOT NULL DEFAULT '',
    guests INTEGER NOT NULL DEFAULT 0,
    coins INTEGER NOT NULL DEFAULT 0,
    payment_method TEXT NOT NULL DEFAULT '',
    ref_code TEXT NOT NULL DEFAULT '',
    amount_due_zar REAL NOT NULL DEFAULT 0,
    anonymous INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rsvp_guest_names (
    rsvp_code TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (rsvp_code, position),
    FOREIGN KEY (rsvp_code) REFERENCES rsvps(code) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS mail_requests (
    id TEXT PRIMARY KEY,
    recipients TEXT NOT NULL,
    reply_to TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL,
    body_text TEXT NOT NULL,
    body_html TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    claimed_at INTEGER NOT NULL DEFAULT 0,
    sent_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rsvp_guest_names_code ON rsvp_guest_names(rsvp_code);
CREATE INDEX IF NOT EXISTS idx_mail_requests_status ON mail_requests(status, created_at);
`

// runMigrations applies the schema to the database.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
