// Package auditfile appends human-readable verification lines to a
// per-day log file.
package auditfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"verifybot/internal/store"
	logx "verifybot/pkg/logx"
)

// Writer appends one line per verification to logs/verifications-YYYY-MM-DD.log.
//
// The rotation boundary is the UTC calendar day of the injected clock.
// There is no size-based rotation and no cross-process locking; the bot is a
// single-process deployment.
type Writer struct {
	dir   string
	clock func() time.Time
	log   logx.Logger
}

func New(dir string, log logx.Logger) *Writer {
	return NewWithClock(dir, time.Now, log)
}

// NewWithClock injects the clock used to pick the day file. Tests use this to
// pin the rotation boundary.
func NewWithClock(dir string, clock func() time.Time, log logx.Logger) *Writer {
	if clock == nil {
		clock = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Writer{dir: dir, clock: clock, log: log}
}

// Path returns the file the next Append would write to.
func (w *Writer) Path() string {
	day := w.clock().UTC().Format("2006-01-02")
	return filepath.Join(w.dir, "verifications-"+day+".log")
}

// Append writes one newline-terminated line for the event. Notes are only
// included when verbose is set. By the time Append runs the verification has
// already succeeded, so failures are logged and reported back without
// propagating further up.
func (w *Writer) Append(ev store.VerificationEvent, verbose bool) error {
	line := FormatLine(ev, verbose)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.log.Error("audit file dir", logx.Err(err), logx.String("dir", w.dir))
		return err
	}

	path := w.Path()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		w.log.Error("audit file open", logx.Err(err), logx.String("path", path))
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		w.log.Error("audit file write", logx.Err(err), logx.String("path", path))
		return err
	}
	return nil
}

// FormatLine renders the audit line without the trailing newline:
//
//	[<timestamp>] VERIFICATION: <name> (<id>) verified by <name> (<id>) | Additional: <notes>
func FormatLine(ev store.VerificationEvent, verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] VERIFICATION: %s (%s) verified by %s (%s)",
		ev.At.UTC().Format(time.RFC3339),
		ev.VerifiedUserName, ev.VerifiedUserID,
		ev.VerifierUserName, ev.VerifierUserID,
	)
	if verbose && ev.Notes != "" {
		b.WriteString(" | Additional: ")
		b.WriteString(ev.Notes)
	}
	return b.String()
}
