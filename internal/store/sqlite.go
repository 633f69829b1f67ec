package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "verifybot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers. A single
	// connection also serializes id assignment without explicit locking.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, e EventInput) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_events
		 (guild_id, verified_user_id, verified_user_name, verifier_user_id, verifier_user_name, at, at_unix, notes)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.GuildID, e.VerifiedUserID, e.VerifiedUserName, e.VerifierUserID, e.VerifierUserName,
		e.At.UTC().Format(time.RFC3339Nano), e.At.UnixMilli(), nullStr(e.Notes),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) List(ctx context.Context, guildID string, limit int) ([]VerificationEvent, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, verified_user_id, verified_user_name, verifier_user_id, verifier_user_name, at, notes
		 FROM verification_events
		 WHERE guild_id = ?
		 ORDER BY at_unix DESC, id DESC
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VerificationEvent
	for rows.Next() {
		var (
			ev    VerificationEvent
			at    string
			notes sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.GuildID, &ev.VerifiedUserID, &ev.VerifiedUserName,
			&ev.VerifierUserID, &ev.VerifierUserName, &at, &notes); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			// Tolerate rows written by older schema revisions.
			s.log.Warn("bad event timestamp", logx.Int64("id", ev.ID), logx.String("at", at))
		} else {
			ev.At = t
		}
		ev.Notes = notes.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	// Field-level upsert: never clobbers verbose_logging.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_settings(guild_id, log_channel_id) VALUES(?,?)
		 ON CONFLICT(guild_id) DO UPDATE SET log_channel_id=excluded.log_channel_id`,
		guildID, nullStr(channelID),
	)
	return err
}

func (s *sqliteStore) LogChannel(ctx context.Context, guildID string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrClosed
	}
	var ch sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT log_channel_id FROM guild_settings WHERE guild_id = ?`, guildID).Scan(&ch)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !ch.Valid || ch.String == "" {
		return "", false, nil
	}
	return ch.String, true, nil
}

func (s *sqliteStore) SetVerbose(ctx context.Context, guildID string, on bool) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	v := 0
	if on {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_settings(guild_id, verbose_logging) VALUES(?,?)
		 ON CONFLICT(guild_id) DO UPDATE SET verbose_logging=excluded.verbose_logging`,
		guildID, v,
	)
	return err
}

func (s *sqliteStore) Verbose(ctx context.Context, guildID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT verbose_logging FROM guild_settings WHERE guild_id = ?`, guildID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

func (s *sqliteStore) LogChannels(ctx context.Context) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, log_channel_id FROM guild_settings
		 WHERE log_channel_id IS NOT NULL AND log_channel_id != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var guildID, channelID string
		if err := rows.Scan(&guildID, &channelID); err != nil {
			return nil, err
		}
		out[guildID] = channelID
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
