package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "verifybot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.events.jsonl   (append-only JSON Lines, one event per line)
//   - <prefix>.settings.json  (snapshot, rewritten atomically on every change)
//
// Events are kept in memory; the event count of a verification bot is small
// enough that reloading the full log at startup is cheap.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	eventsPath   string
	settingsPath string
	eventsFile   *os.File

	events   []VerificationEvent
	nextID   int64
	settings map[string]*GuildSettings

	closed bool
}

type eventRecord struct {
	ID               int64  `json:"id"`
	GuildID          string `json:"guild_id"`
	VerifiedUserID   string `json:"verified_user_id"`
	VerifiedUserName string `json:"verified_user_name"`
	VerifierUserID   string `json:"verifier_user_id"`
	VerifierUserName string `json:"verifier_user_name"`
	At               string `json:"at"`
	Notes            string `json:"notes,omitempty"`
}

type settingsRecord struct {
	LogChannelID string `json:"log_channel_id,omitempty"`
	Verbose      bool   `json:"verbose_logging,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{
		log:          log,
		eventsPath:   prefix + ".events.jsonl",
		settingsPath: prefix + ".settings.json",
		nextID:       1,
		settings:     map[string]*GuildSettings{},
	}

	if err := st.loadEvents(); err != nil {
		return nil, err
	}
	if err := st.loadSettings(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(st.eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	st.eventsFile = f
	return st, nil
}

func (s *fileStore) loadEvents() error {
	f, err := os.Open(s.eventsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec eventRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn trailing line (crash mid-append) is recoverable; skip it.
			s.log.Warn("skipping bad event line", logx.Err(err))
			continue
		}
		ev := VerificationEvent{
			ID:               rec.ID,
			GuildID:          rec.GuildID,
			VerifiedUserID:   rec.VerifiedUserID,
			VerifiedUserName: rec.VerifiedUserName,
			VerifierUserID:   rec.VerifierUserID,
			VerifierUserName: rec.VerifierUserName,
			Notes:            rec.Notes,
		}
		if t, err := time.Parse(time.RFC3339Nano, rec.At); err == nil {
			ev.At = t
		}
		s.events = append(s.events, ev)
		if ev.ID >= s.nextID {
			s.nextID = ev.ID + 1
		}
	}
	return sc.Err()
}

func (s *fileStore) loadSettings() error {
	b, err := os.ReadFile(s.settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var m map[string]settingsRecord
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for guildID, rec := range m {
		s.settings[guildID] = &GuildSettings{
			GuildID:      guildID,
			LogChannelID: rec.LogChannelID,
			Verbose:      rec.Verbose,
		}
	}
	return nil
}

func (s *fileStore) saveSettingsLocked() error {
	m := make(map[string]settingsRecord, len(s.settings))
	for guildID, gs := range s.settings {
		m[guildID] = settingsRecord{LogChannelID: gs.LogChannelID, Verbose: gs.Verbose}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.settingsPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.settingsPath)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.eventsFile != nil {
		return s.eventsFile.Close()
	}
	return nil
}

func (s *fileStore) Append(_ context.Context, e EventInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	id := s.nextID
	rec := eventRecord{
		ID:               id,
		GuildID:          e.GuildID,
		VerifiedUserID:   e.VerifiedUserID,
		VerifiedUserName: e.VerifiedUserName,
		VerifierUserID:   e.VerifierUserID,
		VerifierUserName: e.VerifierUserName,
		At:               e.At.UTC().Format(time.RFC3339Nano),
		Notes:            e.Notes,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	if _, err := s.eventsFile.Write(append(b, '\n')); err != nil {
		return 0, err
	}

	s.nextID++
	s.events = append(s.events, VerificationEvent{
		ID:               id,
		GuildID:          e.GuildID,
		VerifiedUserID:   e.VerifiedUserID,
		VerifiedUserName: e.VerifiedUserName,
		VerifierUserID:   e.VerifierUserID,
		VerifierUserName: e.VerifierUserName,
		At:               e.At,
		Notes:            e.Notes,
	})
	return id, nil
}

func (s *fileStore) List(_ context.Context, guildID string, limit int) ([]VerificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var out []VerificationEvent
	for _, ev := range s.events {
		if ev.GuildID == guildID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fileStore) SetLogChannel(_ context.Context, guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	gs := s.settings[guildID]
	if gs == nil {
		gs = &GuildSettings{GuildID: guildID}
		s.settings[guildID] = gs
	}
	gs.LogChannelID = channelID
	return s.saveSettingsLocked()
}

func (s *fileStore) LogChannel(_ context.Context, guildID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}
	gs := s.settings[guildID]
	if gs == nil || gs.LogChannelID == "" {
		return "", false, nil
	}
	return gs.LogChannelID, true, nil
}

func (s *fileStore) SetVerbose(_ context.Context, guildID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	gs := s.settings[guildID]
	if gs == nil {
		gs = &GuildSettings{GuildID: guildID}
		s.settings[guildID] = gs
	}
	gs.Verbose = on
	return s.saveSettingsLocked()
}

func (s *fileStore) Verbose(_ context.Context, guildID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	gs := s.settings[guildID]
	if gs == nil {
		return false, nil
	}
	return gs.Verbose, nil
}

func (s *fileStore) LogChannels(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := map[string]string{}
	for guildID, gs := range s.settings {
		if gs.LogChannelID != "" {
			out[guildID] = gs.LogChannelID
		}
	}
	return out, nil
}
