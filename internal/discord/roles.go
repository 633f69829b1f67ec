package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"verifybot/internal/verify"
)

// Member resolves a guild member, mapping Discord's unknown-member and
// unknown-user responses to verify.ErrMemberNotFound.
func (a *Adapter) Member(ctx context.Context, guildID, userID string) (verify.Member, error) {
	m, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return verify.Member{}, verify.ErrMemberNotFound
		}
		return verify.Member{}, err
	}
	return verify.Member{
		UserID:      userID,
		DisplayName: displayName(m),
		RoleIDs:     m.Roles,
	}, nil
}

func (a *Adapter) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}

func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) || rerr.Message == nil {
		return false
	}
	switch rerr.Message.Code {
	case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
		return true
	}
	return false
}
