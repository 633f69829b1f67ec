package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"verifybot/internal/store"
)

const (
	colorAnnounce = 0x00FF00
	colorSummary  = 0x0099FF
)

func announcementEmbed(ev store.VerificationEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "User Verified",
		Color: colorAnnounce,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Verified User",
				Value:  fmt.Sprintf("<@%s> (%s)", ev.VerifiedUserID, ev.VerifiedUserName),
				Inline: true,
			},
			{
				Name:   "Verified By",
				Value:  fmt.Sprintf("<@%s> (%s)", ev.VerifierUserID, ev.VerifierUserName),
				Inline: true,
			},
			{
				Name:   "Timestamp",
				Value:  ev.At.UTC().Format(time.RFC3339),
				Inline: false,
			},
		},
		Timestamp: ev.At.UTC().Format(time.RFC3339),
	}
}

func summaryEmbed(events []store.VerificationEvent, now time.Time) *discordgo.MessageEmbed {
	var b strings.Builder
	b.WriteString("**Recent Verification Log**\n\n")

	if len(events) == 0 {
		b.WriteString("*No verifications recorded yet.*")
	} else {
		for i, ev := range events {
			fmt.Fprintf(&b, "**%d.** %s verified by %s on %s\n",
				i+1, ev.VerifiedUserName, ev.VerifierUserName,
				ev.At.UTC().Format("2006-01-02 15:04 MST"))
		}
	}

	fmt.Fprintf(&b, "\n*Last updated: %s*", now.UTC().Format("2006-01-02 15:04 MST"))

	return &discordgo.MessageEmbed{
		Title:       "Verification Log Summary",
		Description: b.String(),
		Color:       colorSummary,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}
