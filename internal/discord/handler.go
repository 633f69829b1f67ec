package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"verifybot/internal/notify"
	"verifybot/internal/stats"
	"verifybot/internal/store"
	"verifybot/internal/verify"
	logx "verifybot/pkg/logx"
)

const (
	// statsWindow bounds the events fed to the aggregator. Statistics such
	// as "first verification" describe this window, not all history.
	statsWindow = 1000

	defaultViewLimit = 10

	handlerTimeout = 15 * time.Second
)

// Handler routes slash-command interactions to the verification services.
// All replies are ephemeral; every interaction is gated on the mod role.
type Handler struct {
	svc       *verify.Service
	st        store.Store
	notif     *notify.Notifier
	modRoleID string
	log       logx.Logger
}

func NewHandler(svc *verify.Service, st store.Store, notif *notify.Notifier, modRoleID string, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{svc: svc, st: st, notif: notif, modRoleID: modRoleID, log: log}
}

// Attach registers the interaction router on the adapter. Call before Open.
func (h *Handler) Attach(a *Adapter) {
	a.AddHandler(h.handleInteraction)
}

func (h *Handler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	data := i.ApplicationCommandData()
	log := h.log.With(
		logx.String("req", uuid.NewString()),
		logx.String("cmd", data.Name),
		logx.String("guild", i.GuildID),
	)

	// Defer an ephemeral reply to buy time for the REST calls below.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error("interaction ack failed", logx.Err(err))
		return
	}

	reply := func(msg string, embed *discordgo.MessageEmbed) {
		edit := &discordgo.WebhookEdit{}
		if msg != "" {
			edit.Content = &msg
		}
		if embed != nil {
			edit.Embeds = &[]*discordgo.MessageEmbed{embed}
		}
		if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
			log.Error("interaction reply failed", logx.Err(err))
		}
	}

	if i.GuildID == "" || i.Member == nil {
		reply("This command can only be used in a server.", nil)
		return
	}
	if !hasRole(i.Member.Roles, h.modRoleID) {
		reply("You do not have permission to use this command. Mod role required.", nil)
		return
	}

	msg, embed, err := h.dispatch(ctx, i, data)
	if err != nil {
		log.Error("command failed", logx.Err(err))
		reply("An error occurred while processing the command.", nil)
		return
	}
	reply(msg, embed)
}

func (h *Handler) dispatch(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (string, *discordgo.MessageEmbed, error) {
	if len(data.Options) == 0 {
		return "Unknown subcommand.", nil, nil
	}
	sub := data.Options[0]

	switch data.Name + "/" + sub.Name {
	case "verify/user":
		msg, err := h.verifyUser(ctx, i, options(sub))
		return msg, nil, err
	case "verify/config":
		msg, err := h.verifyConfig(ctx, i.GuildID, options(sub))
		return msg, nil, err
	case "vlog/update":
		msg, err := h.vlogUpdate(ctx, i.GuildID)
		return msg, nil, err
	case "vlog/view":
		return h.vlogView(ctx, i.GuildID, options(sub))
	case "vlog/stats":
		return h.vlogStats(ctx, i.GuildID)
	default:
		return "Unknown subcommand.", nil, nil
	}
}

func (h *Handler) verifyUser(ctx context.Context, i *discordgo.InteractionCreate, opts optionMap) (string, error) {
	userOpt, ok := opts["user"]
	if !ok {
		return "You must specify a user to verify.", nil
	}

	req := verify.Request{
		GuildID:      i.GuildID,
		TargetUserID: userOpt.UserValue(nil).ID,
		ActorUserID:  i.Member.User.ID,
		ActorName:    displayName(i.Member),
	}
	if o, ok := opts["notes"]; ok {
		req.Notes = o.StringValue()
	}
	if o, ok := opts["silent"]; ok {
		req.Silent = o.BoolValue()
	}

	res, err := h.svc.Verify(ctx, req)
	if errors.Is(err, verify.ErrMemberNotFound) {
		return "Could not find that user in this server.", nil
	}
	if err != nil {
		return "", err
	}
	if res.AlreadyVerified {
		return fmt.Sprintf("%s is already verified.", res.TargetName), nil
	}

	msg := fmt.Sprintf("Successfully verified %s.", res.TargetName)
	if res.UnverifiedRemoveErr != nil {
		msg += " The unverified role could not be removed."
	}
	if res.Logged && res.Sinks.AnyFailed() {
		msg += " Some verification logging failed; check the operational log."
	}
	return msg, nil
}

func (h *Handler) verifyConfig(ctx context.Context, guildID string, opts optionMap) (string, error) {
	chOpt, hasChannel := opts["channel"]
	vbOpt, hasVerbose := opts["verbose"]
	if !hasChannel && !hasVerbose {
		return "Nothing to configure. Provide `channel` and/or `verbose`.", nil
	}

	var msg string
	if hasChannel {
		channelID := chOpt.ChannelValue(nil).ID
		// Reject unsupported kinds before persisting anything.
		if err := h.notif.ValidateChannel(ctx, channelID); err != nil {
			if errors.Is(err, notify.ErrNotTextChannel) {
				return "Only text channels can be configured as the log channel.", nil
			}
			return "", err
		}
		if err := h.st.SetLogChannel(ctx, guildID, channelID); err != nil {
			return "", err
		}
		msg = fmt.Sprintf("Log channel set to <#%s>.", channelID)
	}
	if hasVerbose {
		on := vbOpt.BoolValue()
		if err := h.st.SetVerbose(ctx, guildID, on); err != nil {
			return "", err
		}
		if msg != "" {
			msg += " "
		}
		msg += fmt.Sprintf("Verbose logging %s.", onOff(on))
	}
	return msg, nil
}

func (h *Handler) vlogUpdate(ctx context.Context, guildID string) (string, error) {
	err := h.notif.RefreshSummary(ctx, guildID)
	if errors.Is(err, notify.ErrNoChannel) {
		return "No log channel configured. Use `/verify config channel:#channel` to set one.", nil
	}
	if err != nil {
		return "Failed to update the verification log.", nil
	}
	return "Verification log updated in the configured channel.", nil
}

func (h *Handler) vlogView(ctx context.Context, guildID string, opts optionMap) (string, *discordgo.MessageEmbed, error) {
	limit := defaultViewLimit
	if o, ok := opts["limit"]; ok {
		limit = int(o.IntValue())
	}

	events, err := h.st.List(ctx, guildID, limit)
	if err != nil {
		return "", nil, err
	}
	if len(events) == 0 {
		return "No verification logs found for this server.", nil, nil
	}
	return "", viewEmbed(events), nil
}

func (h *Handler) vlogStats(ctx context.Context, guildID string) (string, *discordgo.MessageEmbed, error) {
	events, err := h.st.List(ctx, guildID, statsWindow)
	if err != nil {
		return "", nil, err
	}
	if len(events) == 0 {
		return "No verification data available for statistics.", nil, nil
	}
	sum := stats.Aggregate(events, time.Now())
	return "", statsEmbed(sum), nil
}

// ---- option helpers ----

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func options(sub *discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(sub.Options))
	for _, o := range sub.Options {
		m[o.Name] = o
	}
	return m
}

func hasRole(roleIDs []string, roleID string) bool {
	for _, id := range roleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
