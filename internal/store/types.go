package store

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("store closed")

// DefaultListLimit caps List() when the caller passes limit <= 0.
const DefaultListLimit = 100

// Config configures the store.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   dependency-free file backend (jsonl events + settings snapshot)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// EventInput is a verification event before the store assigns its id.
//
// Duplicate content is legal: the same pair of users may be verified more
// than once (re-verification after a role change).
type EventInput struct {
	GuildID          string
	VerifiedUserID   string
	VerifiedUserName string
	VerifierUserID   string
	VerifierUserName string
	At               time.Time
	Notes            string // only set for signed verifications
}

// VerificationEvent is an immutable persisted record.
// Events are never updated or deleted.
type VerificationEvent struct {
	ID               int64
	GuildID          string
	VerifiedUserID   string
	VerifiedUserName string
	VerifierUserID   string
	VerifierUserName string
	At               time.Time
	Notes            string
}

// GuildSettings holds the per-guild configuration row.
// Unset guilds read as the zero value, not an error.
type GuildSettings struct {
	GuildID      string
	LogChannelID string
	Verbose      bool
}
