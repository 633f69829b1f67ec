// Package discord adapts the bot to the Discord gateway and REST API via
// discordgo. It implements the role-mutation and messaging interfaces the
// core services depend on.
package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	logx "verifybot/pkg/logx"
)

type Config struct {
	Token string

	// GuildID scopes command registration to one guild; empty registers
	// globally.
	GuildID string

	ModRoleID string
}

type Adapter struct {
	cfg     Config
	log     logx.Logger
	session *discordgo.Session
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	// Guild metadata and member lookups are all this bot needs.
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	a := &Adapter{cfg: cfg, log: log, session: s}
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.log.Info("discord gateway ready",
			logx.String("user", r.User.Username),
			logx.Int("guilds", len(r.Guilds)))
	})
	return a, nil
}

// AddHandler forwards to the underlying session (used to attach the
// interaction router before Open).
func (a *Adapter) AddHandler(h any) {
	a.session.AddHandler(h)
}

// Open connects to the gateway.
func (a *Adapter) Open() error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	if a.session == nil {
		return nil
	}
	return a.session.Close()
}

// RegisterCommands creates the slash commands, scoped to cfg.GuildID when
// set. Registration is idempotent on Discord's side (same name overwrites).
func (a *Adapter) RegisterCommands() error {
	appID := a.session.State.User.ID
	for _, cmd := range Commands() {
		if _, err := a.session.ApplicationCommandCreate(appID, a.cfg.GuildID, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
		a.log.Info("registered command", logx.String("name", cmd.Name))
	}
	return nil
}
