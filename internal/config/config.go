// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the binaries need. All values come from the
// environment so the same image runs locally against SQLite and hosted
// against MongoDB without a rebuild.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `env:"INVITE_ADDR" envDefault:":8080"`

	// StaticPath is the directory served for non-API routes.
	StaticPath string `env:"INVITE_STATIC_PATH" envDefault:"./web/dist"`

	// Storage selects the backend: "sqlite" or "mongo".
	Storage string `env:"INVITE_STORAGE" envDefault:"sqlite"`

	// DBPath is the SQLite database file, used when Storage is "sqlite".
	DBPath string `env:"INVITE_DB_PATH" envDefault:"./data/invitation.db"`

	// MongoURI and MongoDB locate the hosted database, used when Storage
	// is "mongo".
	MongoURI string `env:"INVITE_MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB  string `env:"INVITE_MONGO_DB" envDefault:"invitation"`

	// SessionTTL is how long an idle flow session survives.
	SessionTTL time.Duration `env:"INVITE_SESSION_TTL" envDefault:"2h"`

	// NotifyTo is the list of addresses that receive RSVP notifications.
	NotifyTo []string `env:"INVITE_NOTIFY_TO" envSeparator:","`

	// ReplyTo, when set, lets the couple answer a notification directly.
	ReplyTo string `env:"INVITE_REPLY_TO"`

	// MailPollInterval is the idle delay between mail-queue checks.
	MailPollInterval time.Duration `env:"INVITE_MAIL_POLL_INTERVAL" envDefault:"15s"`

	SMTP SMTPConfig `envPrefix:"INVITE_SMTP_"`
}

// SMTPConfig locates the outbound mail relay.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Secure   bool   `env:"SECURE" envDefault:"false"`
	Username string `env:"USER"`
	Password string `env:"PASS,unset"`
	From     string `env:"FROM"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.Storage != "sqlite" && cfg.Storage != "mongo" {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
	return cfg, nil
}
