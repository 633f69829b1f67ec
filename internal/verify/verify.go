// Package verify implements the verification action: role mutation against
// the platform followed by best-effort fan-out to the logging sinks.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"verifybot/internal/store"
	logx "verifybot/pkg/logx"
)

var (
	// ErrNotConfigured means required role ids are missing. It is detected
	// before any external call.
	ErrNotConfigured = errors.New("verification roles not configured")
	// ErrMemberNotFound means the target is not a member of the guild.
	// The platform adapter maps its not-found responses to this sentinel.
	ErrMemberNotFound = errors.New("member not found in guild")
)

// Roles is the role-mutation slice of the chat platform.
type Roles interface {
	Member(ctx context.Context, guildID, userID string) (Member, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

type Member struct {
	UserID      string
	DisplayName string
	RoleIDs     []string
}

func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Recorder is the store slice the action needs.
type Recorder interface {
	Append(ctx context.Context, e store.EventInput) (int64, error)
	Verbose(ctx context.Context, guildID string) (bool, error)
}

// Announcer posts a single verification to the guild's log channel.
type Announcer interface {
	NotifyOne(ctx context.Context, ev store.VerificationEvent) error
}

// AuditAppender writes the flat audit-file line.
type AuditAppender interface {
	Append(ev store.VerificationEvent, verbose bool) error
}

type Config struct {
	VerifiedRoleID   string
	UnverifiedRoleID string
}

type Request struct {
	GuildID      string
	TargetUserID string

	ActorUserID string
	ActorName   string

	// Notes annotates a signed verification (free text, optional).
	Notes string
	// Silent skips the logging pathway entirely (no event, no sinks).
	Silent bool
}

// SinkOutcomes records each sink's result independently. There is no
// cross-sink transaction: one sink failing never prevents the others from
// being attempted, and never rolls back the role grant.
type SinkOutcomes struct {
	Store     error
	Notifier  error
	AuditFile error
}

func (o SinkOutcomes) AnyFailed() bool {
	return o.Store != nil || o.Notifier != nil || o.AuditFile != nil
}

type Result struct {
	TargetName      string
	AlreadyVerified bool

	// UnverifiedRemoveErr records the best-effort removal of the
	// unverified role. The verification is successful regardless.
	UnverifiedRemoveErr error

	Logged  bool
	EventID int64
	Sinks   SinkOutcomes
}

// Service performs verifications. Construct one per process and inject it
// into the command layer.
type Service struct {
	roles Roles
	rec   Recorder
	ann   Announcer
	audit AuditAppender
	cfg   Config
	clock func() time.Time
	log   logx.Logger
}

func New(cfg Config, roles Roles, rec Recorder, ann Announcer, audit AuditAppender, log logx.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.VerifiedRoleID) == "" || strings.TrimSpace(cfg.UnverifiedRoleID) == "" {
		return nil, ErrNotConfigured
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		roles: roles,
		rec:   rec,
		ann:   ann,
		audit: audit,
		cfg:   cfg,
		clock: time.Now,
		log:   log,
	}, nil
}

// SetClock overrides the event timestamp source. Tests only.
func (s *Service) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Verify runs the full sequence for one request:
//
//  1. resolve the target member (not found is fatal)
//  2. short-circuit if already verified, with zero side effects
//  3. grant the verified role (failure is fatal)
//  4. remove the unverified role if held (best-effort)
//  5. for signed requests, fan out to store, channel and audit file
//     independently
func (s *Service) Verify(ctx context.Context, req Request) (Result, error) {
	var res Result

	member, err := s.roles.Member(ctx, req.GuildID, req.TargetUserID)
	if err != nil {
		return res, err
	}
	res.TargetName = member.DisplayName

	if member.HasRole(s.cfg.VerifiedRoleID) {
		res.AlreadyVerified = true
		return res, nil
	}

	if err := s.roles.AddRole(ctx, req.GuildID, req.TargetUserID, s.cfg.VerifiedRoleID); err != nil {
		return res, fmt.Errorf("grant verified role: %w", err)
	}

	if member.HasRole(s.cfg.UnverifiedRoleID) {
		if err := s.roles.RemoveRole(ctx, req.GuildID, req.TargetUserID, s.cfg.UnverifiedRoleID); err != nil {
			// Known partial-failure policy: the verification stands.
			res.UnverifiedRemoveErr = err
			s.log.Warn("unverified role removal failed", logx.Err(err),
				logx.String("guild", req.GuildID), logx.String("user", req.TargetUserID))
		}
	}

	if req.Silent {
		return res, nil
	}

	res.Logged = true
	res.Sinks, res.EventID = s.fanOut(ctx, req, member)
	return res, nil
}

// fanOut records the event in each sink in a fixed order. Failures are
// isolated per sink and logged; the caller decides what to tell the
// moderator.
func (s *Service) fanOut(ctx context.Context, req Request, member Member) (SinkOutcomes, int64) {
	var out SinkOutcomes

	verbose, err := s.rec.Verbose(ctx, req.GuildID)
	if err != nil {
		verbose = false
		s.log.Warn("verbose flag lookup failed", logx.Err(err), logx.String("guild", req.GuildID))
	}

	ev := store.VerificationEvent{
		GuildID:          req.GuildID,
		VerifiedUserID:   member.UserID,
		VerifiedUserName: member.DisplayName,
		VerifierUserID:   req.ActorUserID,
		VerifierUserName: req.ActorName,
		At:               s.clock(),
		Notes:            req.Notes,
	}

	id, err := s.rec.Append(ctx, store.EventInput{
		GuildID:          ev.GuildID,
		VerifiedUserID:   ev.VerifiedUserID,
		VerifiedUserName: ev.VerifiedUserName,
		VerifierUserID:   ev.VerifierUserID,
		VerifierUserName: ev.VerifierUserName,
		At:               ev.At,
		Notes:            ev.Notes,
	})
	if err != nil {
		out.Store = err
		s.log.Error("event store append failed", logx.Err(err), logx.String("guild", req.GuildID))
	} else {
		ev.ID = id
	}

	if err := s.ann.NotifyOne(ctx, ev); err != nil {
		out.Notifier = err
	}

	if err := s.audit.Append(ev, verbose); err != nil {
		out.AuditFile = err
	}

	return out, ev.ID
}
