package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"verifybot/internal/store"
	logx "verifybot/pkg/logx"
)

type fakeMessenger struct {
	sent     []sentEmbed
	sendErr  error
	textOnly map[string]bool
}

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

func (f *fakeMessenger) SendEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentEmbed{channelID, embed})
	return nil
}

func (f *fakeMessenger) IsTextChannel(_ context.Context, channelID string) (bool, error) {
	return f.textOnly[channelID], nil
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(store.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testNotifier(st store.Store, m Messenger) *Notifier {
	fixed := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	return New(st, m, Options{RatePerSec: 100, Clock: func() time.Time { return fixed }}, logx.Nop())
}

func appendEvent(t *testing.T, st store.Store, guildID, name string, at time.Time) {
	t.Helper()
	_, err := st.Append(context.Background(), store.EventInput{
		GuildID:          guildID,
		VerifiedUserID:   "u-" + name,
		VerifiedUserName: name,
		VerifierUserID:   "m1",
		VerifierUserName: "mod",
		At:               at,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestNotifyOneWithoutChannelIsNoop(t *testing.T) {
	st := testStore(t)
	m := &fakeMessenger{}
	n := testNotifier(st, m)

	err := n.NotifyOne(context.Background(), store.VerificationEvent{GuildID: "g1", VerifiedUserName: "alice"})
	if err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if len(m.sent) != 0 {
		t.Fatalf("expected no sends, got %d", len(m.sent))
	}
}

func TestNotifyOneSendsToConfiguredChannel(t *testing.T) {
	st := testStore(t)
	m := &fakeMessenger{}
	n := testNotifier(st, m)
	ctx := context.Background()

	if err := st.SetLogChannel(ctx, "g1", "chan-1"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	ev := store.VerificationEvent{
		GuildID:          "g1",
		VerifiedUserID:   "100",
		VerifiedUserName: "alice",
		VerifierUserID:   "200",
		VerifierUserName: "mod",
		At:               time.Now(),
	}
	if err := n.NotifyOne(ctx, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].channelID != "chan-1" {
		t.Fatalf("unexpected sends: %+v", m.sent)
	}
	if m.sent[0].embed.Title != "User Verified" {
		t.Fatalf("unexpected embed title %q", m.sent[0].embed.Title)
	}
}

func TestNotifyOneReportsSendFailure(t *testing.T) {
	st := testStore(t)
	m := &fakeMessenger{sendErr: errors.New("send boom")}
	n := testNotifier(st, m)
	ctx := context.Background()

	if err := st.SetLogChannel(ctx, "g1", "chan-1"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	if err := n.NotifyOne(ctx, store.VerificationEvent{GuildID: "g1"}); err == nil {
		t.Fatal("expected send failure to surface as per-sink error")
	}
}

func TestRefreshSummaryNewestFirst(t *testing.T) {
	st := testStore(t)
	m := &fakeMessenger{}
	n := testNotifier(st, m)
	ctx := context.Background()

	if err := st.SetLogChannel(ctx, "g1", "chan-1"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	appendEvent(t, st, "g1", "oldest", base)
	appendEvent(t, st, "g1", "middle", base.Add(time.Hour))
	appendEvent(t, st, "g1", "newest", base.Add(2*time.Hour))

	if err := n.RefreshSummary(ctx, "g1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one summary message, got %d", len(m.sent))
	}
	desc := m.sent[0].embed.Description
	if !strings.Contains(desc, "**1.** newest") {
		t.Fatalf("summary not newest-first:\n%s", desc)
	}
	if !strings.Contains(desc, "Last updated: 2025-06-05 10:00 UTC") {
		t.Fatalf("summary missing last-updated footer:\n%s", desc)
	}
}

func TestRefreshSummaryWithoutChannel(t *testing.T) {
	st := testStore(t)
	n := testNotifier(st, &fakeMessenger{})

	err := n.RefreshSummary(context.Background(), "g1")
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
}

func TestValidateChannelRejectsNonText(t *testing.T) {
	st := testStore(t)
	m := &fakeMessenger{textOnly: map[string]bool{"text-1": true}}
	n := testNotifier(st, m)
	ctx := context.Background()

	if err := n.ValidateChannel(ctx, "text-1"); err != nil {
		t.Fatalf("text channel rejected: %v", err)
	}
	if err := n.ValidateChannel(ctx, "voice-1"); !errors.Is(err, ErrNotTextChannel) {
		t.Fatalf("expected ErrNotTextChannel, got %v", err)
	}
}
