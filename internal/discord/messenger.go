package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// SendEmbed posts a single embed to the channel.
func (a *Adapter) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := a.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

// IsTextChannel reports whether the channel kind can receive messages.
// Only guild text and announcement channels qualify as log channels.
func (a *Adapter) IsTextChannel(ctx context.Context, channelID string) (bool, error) {
	ch, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true, nil
	}
	return false, nil
}
