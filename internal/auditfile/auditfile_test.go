package auditfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"verifybot/internal/store"
	logx "verifybot/pkg/logx"
)

func testEvent() store.VerificationEvent {
	return store.VerificationEvent{
		ID:               7,
		GuildID:          "g1",
		VerifiedUserID:   "100",
		VerifiedUserName: "alice",
		VerifierUserID:   "200",
		VerifierUserName: "mod",
		At:               time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
		Notes:            "manual check",
	}
}

func TestFormatLine(t *testing.T) {
	ev := testEvent()

	got := FormatLine(ev, false)
	want := "[2025-06-02T14:30:00Z] VERIFICATION: alice (100) verified by mod (200)"
	if got != want {
		t.Fatalf("line = %q, want %q", got, want)
	}

	got = FormatLine(ev, true)
	if !strings.HasSuffix(got, " | Additional: manual check") {
		t.Fatalf("verbose line missing notes: %q", got)
	}

	// Verbose without notes adds nothing.
	ev.Notes = ""
	if got := FormatLine(ev, true); got != want {
		t.Fatalf("verbose line without notes = %q, want %q", got, want)
	}
}

func TestAppendDailyRotation(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 6, 2, 23, 59, 0, 0, time.UTC)
	w := NewWithClock(dir, func() time.Time { return day }, logx.Nop())

	if err := w.Append(testEvent(), false); err != nil {
		t.Fatalf("append: %v", err)
	}
	if filepath.Base(w.Path()) != "verifications-2025-06-02.log" {
		t.Fatalf("unexpected day file: %s", w.Path())
	}

	// Clock crosses midnight: new file.
	day = day.Add(2 * time.Minute)
	if err := w.Append(testEvent(), false); err != nil {
		t.Fatalf("append: %v", err)
	}
	if filepath.Base(w.Path()) != "verifications-2025-06-03.log" {
		t.Fatalf("expected rotation to next day, got %s", w.Path())
	}

	b1, err := os.ReadFile(filepath.Join(dir, "verifications-2025-06-02.log"))
	if err != nil {
		t.Fatalf("read day 1: %v", err)
	}
	b2, err := os.ReadFile(filepath.Join(dir, "verifications-2025-06-03.log"))
	if err != nil {
		t.Fatalf("read day 2: %v", err)
	}
	if strings.Count(string(b1), "\n") != 1 || strings.Count(string(b2), "\n") != 1 {
		t.Fatalf("expected one line per day file, got %q / %q", b1, b2)
	}
}

func TestAppendReportsWriteFailure(t *testing.T) {
	// Point the writer at a path that cannot be a directory.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := New(filepath.Join(blocker, "logs"), logx.Nop())
	if err := w.Append(testEvent(), false); err == nil {
		t.Fatal("expected error writing under a regular file")
	}
}
