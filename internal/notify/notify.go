// Package notify posts verification announcements and summaries to a guild's
// configured log channel.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"verifybot/internal/store"
	logx "verifybot/pkg/logx"
)

// SummaryLimit is the number of events rendered by RefreshSummary.
const SummaryLimit = 20

var (
	// ErrNoChannel means the guild has no log channel configured.
	ErrNoChannel = errors.New("no log channel configured")
	// ErrNotTextChannel rejects configuring a channel kind that cannot
	// receive messages.
	ErrNotTextChannel = errors.New("log channel must be a text channel")
)

// Messenger is the slice of the chat platform the notifier needs.
// The Discord adapter implements it; tests use fakes.
type Messenger interface {
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	IsTextChannel(ctx context.Context, channelID string) (bool, error)
}

// Notifier is best-effort by contract: a failed send must never fail the
// verification that triggered it. Callers record the returned error in the
// per-sink outcome and move on.
type Notifier struct {
	store     store.Store
	messenger Messenger
	limiter   *rate.Limiter
	clock     func() time.Time
	log       logx.Logger
}

type Options struct {
	// RatePerSec bounds outgoing sends. 0 means 5.
	RatePerSec int
	// Clock overrides time.Now, used by tests to pin "last updated".
	Clock func() time.Time
}

func New(st store.Store, m Messenger, opts Options, log logx.Logger) *Notifier {
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		store:     st,
		messenger: m,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		clock:     clock,
		log:       log,
	}
}

// ValidateChannel rejects non-text channel kinds before they are persisted
// as a guild's log channel.
func (n *Notifier) ValidateChannel(ctx context.Context, channelID string) error {
	ok, err := n.messenger.IsTextChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTextChannel
	}
	return nil
}

// NotifyOne announces a single verification in the guild's log channel.
// A guild without a configured channel is a no-op, not an error.
func (n *Notifier) NotifyOne(ctx context.Context, ev store.VerificationEvent) error {
	channelID, ok, err := n.store.LogChannel(ctx, ev.GuildID)
	if err != nil {
		n.log.Error("log channel lookup", logx.Err(err), logx.String("guild", ev.GuildID))
		return err
	}
	if !ok {
		return nil
	}

	if err := n.send(ctx, channelID, announcementEmbed(ev)); err != nil {
		n.log.Error("verification announcement failed", logx.Err(err),
			logx.String("guild", ev.GuildID), logx.String("channel", channelID))
		return err
	}
	return nil
}

// RefreshSummary posts a freshly rendered summary of the most recent events
// as a new message. Repeated calls accumulate messages; nothing is edited
// in place.
func (n *Notifier) RefreshSummary(ctx context.Context, guildID string) error {
	channelID, ok, err := n.store.LogChannel(ctx, guildID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoChannel
	}

	events, err := n.store.List(ctx, guildID, SummaryLimit)
	if err != nil {
		n.log.Error("summary event fetch failed", logx.Err(err), logx.String("guild", guildID))
		return err
	}

	if err := n.send(ctx, channelID, summaryEmbed(events, n.clock())); err != nil {
		n.log.Error("summary post failed", logx.Err(err),
			logx.String("guild", guildID), logx.String("channel", channelID))
		return err
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	return n.messenger.SendEmbed(ctx, channelID, embed)
}
