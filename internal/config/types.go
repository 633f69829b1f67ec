package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Discord DiscordConfig `json:"discord"`
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Audit   AuditConfig   `json:"audit"`
	Summary SummaryConfig `json:"summary,omitempty"`
}

// DiscordConfig carries platform credentials and the role ids the
// verification action needs. Token falls back to $DISCORD_TOKEN when omitted
// from the file so the secret can stay out of it.
type DiscordConfig struct {
	Token string `json:"token,omitempty"`

	// GuildID scopes slash-command registration to one guild.
	// Empty registers commands globally (slower to propagate).
	GuildID string `json:"guild_id,omitempty"`

	ModRoleID        string `json:"mod_role_id"`
	VerifiedRoleID   string `json:"verified_role_id"`
	UnverifiedRoleID string `json:"unverified_role_id"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/verifications.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) or "file"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// AuditConfig controls the flat per-day audit file.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir,omitempty"` // default "./logs"
}

// SummaryConfig controls the scheduled summary refresh posted to each
// configured log channel.
//
// Schedule accepts a cron expression ("55 * * * *", "@hourly") or an
// interval ("@every 6h"). Empty disables the job.
type SummaryConfig struct {
	Schedule   string `json:"schedule,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Validate checks the invariants commands rely on. Missing credentials are a
// configuration error detected before any platform call.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.EffectiveToken()) == "" {
		return fmt.Errorf("discord.token is required (or set DISCORD_TOKEN)")
	}
	for path, v := range map[string]string{
		"discord.mod_role_id":        c.Discord.ModRoleID,
		"discord.verified_role_id":   c.Discord.VerifiedRoleID,
		"discord.unverified_role_id": c.Discord.UnverifiedRoleID,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", path)
		}
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

// EffectiveToken returns the configured token, falling back to the
// DISCORD_TOKEN environment variable.
func (c *Config) EffectiveToken() string {
	if t := strings.TrimSpace(c.Discord.Token); t != "" {
		return t
	}
	return strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
}

// AuditDir returns the audit directory with its default applied.
func (c *Config) AuditDir() string {
	if d := strings.TrimSpace(c.Audit.Dir); d != "" {
		return d
	}
	return "./logs"
}
