package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"verifybot/internal/store"
	logx "verifybot/pkg/logx"
)

const (
	verifiedRole   = "role-verified"
	unverifiedRole = "role-unverified"
)

type fakeRoles struct {
	members map[string]Member // userID -> member

	added     []string
	removed   []string
	addErr    error
	removeErr error
}

func (f *fakeRoles) Member(_ context.Context, _, userID string) (Member, error) {
	m, ok := f.members[userID]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (f *fakeRoles) AddRole(_ context.Context, _, userID, roleID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, userID+":"+roleID)
	return nil
}

func (f *fakeRoles) RemoveRole(_ context.Context, _, userID, roleID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, userID+":"+roleID)
	return nil
}

type fakeRecorder struct {
	appended  []store.EventInput
	appendErr error
	verbose   bool
}

func (f *fakeRecorder) Append(_ context.Context, e store.EventInput) (int64, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.appended = append(f.appended, e)
	return int64(len(f.appended)), nil
}

func (f *fakeRecorder) Verbose(_ context.Context, _ string) (bool, error) {
	return f.verbose, nil
}

type fakeAnnouncer struct {
	notified []store.VerificationEvent
	err      error
}

func (f *fakeAnnouncer) NotifyOne(_ context.Context, ev store.VerificationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, ev)
	return nil
}

type fakeAudit struct {
	lines []store.VerificationEvent
	err   error
}

func (f *fakeAudit) Append(ev store.VerificationEvent, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.lines = append(f.lines, ev)
	return nil
}

type fixture struct {
	roles *fakeRoles
	rec   *fakeRecorder
	ann   *fakeAnnouncer
	audit *fakeAudit
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		roles: &fakeRoles{members: map[string]Member{
			"target": {UserID: "target", DisplayName: "alice", RoleIDs: []string{unverifiedRole}},
		}},
		rec:   &fakeRecorder{},
		ann:   &fakeAnnouncer{},
		audit: &fakeAudit{},
	}
	svc, err := New(Config{VerifiedRoleID: verifiedRole, UnverifiedRoleID: unverifiedRole},
		f.roles, f.rec, f.ann, f.audit, logx.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.SetClock(func() time.Time { return time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC) })
	f.svc = svc
	return f
}

func request() Request {
	return Request{
		GuildID:      "g1",
		TargetUserID: "target",
		ActorUserID:  "mod-1",
		ActorName:    "mod",
	}
}

func TestNewRequiresRoleConfig(t *testing.T) {
	_, err := New(Config{VerifiedRoleID: "", UnverifiedRoleID: unverifiedRole},
		&fakeRoles{}, &fakeRecorder{}, &fakeAnnouncer{}, &fakeAudit{}, logx.Nop())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestVerifyHappyPath(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Verify(context.Background(), request())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.AlreadyVerified {
		t.Fatal("unexpected already-verified")
	}
	if res.TargetName != "alice" {
		t.Fatalf("target name = %q", res.TargetName)
	}
	if len(f.roles.added) != 1 || f.roles.added[0] != "target:"+verifiedRole {
		t.Fatalf("verified role not granted: %v", f.roles.added)
	}
	if len(f.roles.removed) != 1 || f.roles.removed[0] != "target:"+unverifiedRole {
		t.Fatalf("unverified role not removed: %v", f.roles.removed)
	}
	if !res.Logged || res.Sinks.AnyFailed() {
		t.Fatalf("unexpected sink outcomes: %+v", res.Sinks)
	}
	if len(f.rec.appended) != 1 || len(f.ann.notified) != 1 || len(f.audit.lines) != 1 {
		t.Fatal("expected all three sinks to receive the event")
	}
	if res.EventID != 1 {
		t.Fatalf("event id = %d", res.EventID)
	}
}

func TestVerifyAlreadyVerifiedShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.roles.members["target"] = Member{
		UserID: "target", DisplayName: "alice",
		RoleIDs: []string{verifiedRole, unverifiedRole},
	}

	res, err := f.svc.Verify(context.Background(), request())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.AlreadyVerified {
		t.Fatal("expected already-verified result")
	}
	if len(f.roles.added) != 0 || len(f.roles.removed) != 0 {
		t.Fatal("already-verified must cause no role changes")
	}
	if len(f.rec.appended) != 0 || len(f.ann.notified) != 0 || len(f.audit.lines) != 0 {
		t.Fatal("already-verified must produce no log entries")
	}
}

func TestVerifyMemberNotFound(t *testing.T) {
	f := newFixture(t)
	req := request()
	req.TargetUserID = "ghost"

	_, err := f.svc.Verify(context.Background(), req)
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
	if len(f.roles.added) != 0 {
		t.Fatal("not-found must cause no side effects")
	}
}

func TestVerifyGrantFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.roles.addErr = errors.New("api down")

	_, err := f.svc.Verify(context.Background(), request())
	if err == nil {
		t.Fatal("expected grant failure to be fatal")
	}
	if len(f.rec.appended) != 0 {
		t.Fatal("no event may be recorded when the grant fails")
	}
}

func TestVerifyUnverifiedRemovalBestEffort(t *testing.T) {
	f := newFixture(t)
	f.roles.removeErr = errors.New("hierarchy")

	res, err := f.svc.Verify(context.Background(), request())
	if err != nil {
		t.Fatalf("removal failure must not fail verification: %v", err)
	}
	if res.UnverifiedRemoveErr == nil {
		t.Fatal("removal failure must be recorded, not silently ignored")
	}
	if len(f.rec.appended) != 1 {
		t.Fatal("event must still be logged")
	}
}

func TestVerifySilentSkipsSinks(t *testing.T) {
	f := newFixture(t)
	req := request()
	req.Silent = true

	res, err := f.svc.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Logged {
		t.Fatal("silent verification must not engage the logging pathway")
	}
	if len(f.rec.appended) != 0 || len(f.ann.notified) != 0 || len(f.audit.lines) != 0 {
		t.Fatal("silent verification must hit no sinks")
	}
}

func TestVerifyFanOutIndependence(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture)
		check func(t *testing.T, f *fixture, s SinkOutcomes)
	}{
		{
			name:  "store fails",
			setup: func(f *fixture) { f.rec.appendErr = errors.New("disk full") },
			check: func(t *testing.T, f *fixture, s SinkOutcomes) {
				if s.Store == nil || s.Notifier != nil || s.AuditFile != nil {
					t.Fatalf("outcomes: %+v", s)
				}
				if len(f.ann.notified) != 1 || len(f.audit.lines) != 1 {
					t.Fatal("other sinks must still be attempted")
				}
			},
		},
		{
			name:  "notifier fails",
			setup: func(f *fixture) { f.ann.err = errors.New("channel gone") },
			check: func(t *testing.T, f *fixture, s SinkOutcomes) {
				if s.Notifier == nil || s.Store != nil || s.AuditFile != nil {
					t.Fatalf("outcomes: %+v", s)
				}
				if len(f.rec.appended) != 1 || len(f.audit.lines) != 1 {
					t.Fatal("other sinks must still be attempted")
				}
			},
		},
		{
			name:  "audit file fails",
			setup: func(f *fixture) { f.audit.err = errors.New("permission denied") },
			check: func(t *testing.T, f *fixture, s SinkOutcomes) {
				if s.AuditFile == nil || s.Store != nil || s.Notifier != nil {
					t.Fatalf("outcomes: %+v", s)
				}
				if len(f.rec.appended) != 1 || len(f.ann.notified) != 1 {
					t.Fatal("other sinks must still be attempted")
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)

			res, err := f.svc.Verify(context.Background(), request())
			if err != nil {
				t.Fatalf("sink failure must not fail verification: %v", err)
			}
			if !res.Sinks.AnyFailed() {
				t.Fatal("expected a recorded sink failure")
			}
			tc.check(t, f, res.Sinks)
			if len(f.roles.added) != 1 {
				t.Fatal("role grant must stand regardless of sink failures")
			}
		})
	}
}
