package store

import (
	"context"
	"errors"
	"strings"

	logx "verifybot/pkg/logx"
)

// Store is the persistence API used by the verification service and commands.
type Store interface {
	// Append assigns a new unique id and persists the event verbatim.
	Append(ctx context.Context, e EventInput) (int64, error)

	// List returns at most limit events for the guild, newest first
	// (timestamp descending, id descending on ties).
	// limit <= 0 means DefaultListLimit.
	List(ctx context.Context, guildID string, limit int) ([]VerificationEvent, error)

	SetLogChannel(ctx context.Context, guildID, channelID string) error
	LogChannel(ctx context.Context, guildID string) (string, bool, error)
	SetVerbose(ctx context.Context, guildID string, on bool) error
	Verbose(ctx context.Context, guildID string) (bool, error)

	// LogChannels returns every guild with a configured log channel.
	LogChannels(ctx context.Context) (map[string]string, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
